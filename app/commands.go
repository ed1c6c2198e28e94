package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"audit-trail/pkg/audit"
	"audit-trail/pkg/config"
	"audit-trail/pkg/db"
	"audit-trail/pkg/logging"
	"audit-trail/pkg/worddiff"
)

// commandContext lazily loads configuration for commands that need it.
type commandContext struct {
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	var cfg *config.Config
	if c.envFile != "" {
		loaded, err := config.LoadFile(c.envFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Load()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	c.cfg = cfg
	c.logger = logger
	return cfg, nil
}

// openService opens the configured store and returns a service over it.
// The caller closes the store.
func (c *commandContext) openService() (*audit.Service, db.IVersionStore, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return audit.NewService(store, audit.WithLogger(c.logger)), store, nil
}

// NewRootCommand builds the audit-trail CLI
func NewRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "audit-trail",
		Short:         "Record text versions and the words each one added or removed",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", "", "Read configuration from this env file instead of .env")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newVersionsCommand(ctx))

	return rootCmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and live feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			server, err := NewServer(cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer server.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.Run(runCtx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to SERVER_ADDR)")
	return cmd
}

func newDiffCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Show the words added and removed between two text files",
		Long:  "Show the words added and removed between two text files. Either file may be '-' to read standard input.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "-" && args[1] == "-" {
				return fmt.Errorf("only one of OLD and NEW can be read from stdin")
			}

			oldText, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			newText, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}

			result := worddiff.Detect(oldText, newText)
			if asJSON {
				return writeJSONOutput(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDiff(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newVersionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Inspect and edit the stored audit trail",
	}

	cmd.AddCommand(newVersionsListCommand(ctx))
	cmd.AddCommand(newVersionsSaveCommand(ctx))
	cmd.AddCommand(newVersionsDeleteCommand(ctx))
	return cmd
}

func newVersionsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, store, err := ctx.openService()
			if err != nil {
				return err
			}
			defer store.Close()

			versions, err := service.ListVersions(cmd.Context())
			if err != nil {
				return err
			}

			summaries := make([]*db.Version, 0, len(versions))
			for _, v := range versions {
				summaries = append(summaries, v.WithoutContent())
			}
			if asJSON {
				return writeJSONOutput(cmd.OutOrStdout(), summaries)
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No versions stored")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderVersions(summaries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print versions as JSON")
	return cmd
}

func newVersionsSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save FILE",
		Short: "Save the contents of FILE ('-' for stdin) as a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			service, store, err := ctx.openService()
			if err != nil {
				return err
			}
			defer store.Close()

			v, err := service.SaveVersion(cmd.Context(), content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved version %s at %s\n", v.ID, v.Timestamp)
			fmt.Fprintln(cmd.OutOrStdout(), renderDiff(worddiff.Result{AddedWords: v.AddedWords, RemovedWords: v.RemovedWords}))
			return nil
		},
	}
}

func newVersionsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, store, err := ctx.openService()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := service.DeleteVersion(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted version %s\n", args[0])
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func writeJSONOutput(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderDiff(result worddiff.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Added", "Removed"})

	rows := len(result.AddedWords)
	if len(result.RemovedWords) > rows {
		rows = len(result.RemovedWords)
	}
	for i := 0; i < rows; i++ {
		tw.AppendRow(table.Row{wordAt(result.AddedWords, i), wordAt(result.RemovedWords, i)})
	}
	tw.AppendFooter(table.Row{
		strconv.Itoa(len(result.AddedWords)) + " added",
		strconv.Itoa(len(result.RemovedWords)) + " removed",
	})
	return tw.Render()
}

func renderVersions(versions []*db.Version) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Timestamp", "Added", "Removed", "Old", "New"})
	for _, v := range versions {
		tw.AppendRow(table.Row{
			v.ID,
			v.Timestamp,
			strings.Join(v.AddedWords, ", "),
			strings.Join(v.RemovedWords, ", "),
			v.OldLength,
			v.NewLength,
		})
	}
	return tw.Render()
}

func wordAt(words []string, i int) string {
	if i < len(words) {
		return words[i]
	}
	return ""
}

// Execute runs the CLI with a background context
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}
