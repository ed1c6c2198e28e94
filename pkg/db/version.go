package db

import (
	"context"
	"errors"
	"time"
)

// ErrVersionNotFound is returned when no version matches a lookup.
var ErrVersionNotFound = errors.New("version not found")

// Version is one saved entry of the audit trail
type Version struct {
	ID           string    `json:"id"`
	Timestamp    string    `json:"timestamp"`
	AddedWords   []string  `json:"addedWords"`
	RemovedWords []string  `json:"removedWords"`
	OldLength    int       `json:"oldLength"`
	NewLength    int       `json:"newLength"`
	Content      string    `json:"content,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WithoutContent returns a copy of v with the content cleared, for
// listings where the text itself is not needed.
func (v *Version) WithoutContent() *Version {
	c := *v
	c.Content = ""
	return &c
}

// BuildFunc builds the next version from the latest stored one.
// previous is nil when the store is empty.
type BuildFunc func(previous *Version) (*Version, error)

// IVersionStore is an append-only store of versions
type IVersionStore interface {
	Insert(ctx context.Context, v *Version) error
	// FindLatest returns ErrVersionNotFound when the store is empty.
	FindLatest(ctx context.Context) (*Version, error)
	// FindAll returns every version, newest first.
	FindAll(ctx context.Context) ([]*Version, error)
	// DeleteByID reports whether a version with that id existed.
	DeleteByID(ctx context.Context, id string) (bool, error)
	// AppendNext reads the latest version, builds the next one from it and
	// inserts it without letting another AppendNext run in between.
	AppendNext(ctx context.Context, build BuildFunc) (*Version, error)
	Close() error
}

func nonNil(words []string) []string {
	if words == nil {
		return []string{}
	}
	return words
}
