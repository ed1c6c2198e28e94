// Package audit records text versions together with the words each one
// added and removed.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"

	"audit-trail/pkg/db"
	"audit-trail/pkg/worddiff"
)

// ErrVersionIDRequired is returned when a delete is requested without an id.
var ErrVersionIDRequired = errors.New("version id is required")

// TimestampLayout is the display format of Version.Timestamp.
const TimestampLayout = "2006-01-02 15:04"

// Publisher is notified after the trail changes.
type Publisher interface {
	PublishSaved(v *db.Version)
	PublishDeleted(id string)
}

// Service saves, lists and deletes versions.
type Service struct {
	store     db.IVersionStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher sends change notifications to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how version ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a service backed by store.
func NewService(store db.IVersionStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		newID:  GenerateID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveVersion stores content as the newest version, annotated with the
// words it added and removed relative to the previous one. The first
// version is compared against an empty text.
func (s *Service) SaveVersion(ctx context.Context, content string) (*db.Version, error) {
	saved, err := s.store.AppendNext(ctx, func(previous *db.Version) (*db.Version, error) {
		oldText := ""
		if previous != nil {
			oldText = previous.Content
		}

		changes := worddiff.Detect(oldText, content)
		now := s.now()

		return &db.Version{
			ID:           s.newID(),
			Timestamp:    FormatTimestamp(now),
			AddedWords:   changes.AddedWords,
			RemovedWords: changes.RemovedWords,
			OldLength:    TextLength(oldText),
			NewLength:    TextLength(content),
			Content:      content,
			CreatedAt:    now,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("save version: %w", err)
	}

	s.logger.Info("version saved",
		"id", saved.ID,
		"added", len(saved.AddedWords),
		"removed", len(saved.RemovedWords),
	)
	if s.publisher != nil {
		s.publisher.PublishSaved(saved)
	}
	return saved, nil
}

// ListVersions returns every version, newest first.
func (s *Service) ListVersions(ctx context.Context) ([]*db.Version, error) {
	versions, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// LatestVersion returns the newest version or db.ErrVersionNotFound.
func (s *Service) LatestVersion(ctx context.Context) (*db.Version, error) {
	return s.store.FindLatest(ctx)
}

// DeleteVersion removes one version. It returns db.ErrVersionNotFound when
// no version has that id.
func (s *Service) DeleteVersion(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrVersionIDRequired
	}

	deleted, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete version %s: %w", id, err)
	}
	if !deleted {
		return db.ErrVersionNotFound
	}

	s.logger.Info("version deleted", "id", id)
	if s.publisher != nil {
		s.publisher.PublishDeleted(id)
	}
	return nil
}

// Diff compares two texts without storing anything.
func (s *Service) Diff(oldText, newText string) worddiff.Result {
	return worddiff.Detect(oldText, newText)
}

// FormatTimestamp renders t as "YYYY-MM-DD HH:MM" in t's location.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// GenerateID returns a random UUID string.
func GenerateID() string {
	return uuid.New().String()
}

// TextLength counts UTF-16 code units, the unit browser clients measure
// text in.
func TextLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
