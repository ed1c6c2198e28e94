package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"audit-trail/app"
)

func main() {
	if err := app.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
