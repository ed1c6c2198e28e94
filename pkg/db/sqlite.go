package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteVersionColumns = `id, timestamp_text, added_words, removed_words, old_length, new_length, content, created_at`

// SQLiteVersionStore implements IVersionStore on a local SQLite file.
type SQLiteVersionStore struct {
	db   *sql.DB
	path string
	// appendMu serializes AppendNext within this process.
	appendMu sync.Mutex
}

// NewSQLiteVersionStore opens (or creates) the database at path and
// applies the schema.
func NewSQLiteVersionStore(path string) (*SQLiteVersionStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}

	// busy_timeout is per connection, so it goes in the DSN where every
	// pooled connection picks it up.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteVersionStore{db: db, path: path}
	if err := store.createTable(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return store, nil
}

// Path returns the database file location.
func (s *SQLiteVersionStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteVersionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteVersionStore) Insert(ctx context.Context, v *Version) error {
	return insertSQLite(ctx, s.db, v)
}

func (s *SQLiteVersionStore) FindLatest(ctx context.Context) (*Version, error) {
	return findLatestSQLite(ctx, s.db)
}

func (s *SQLiteVersionStore) FindAll(ctx context.Context) ([]*Version, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteVersionColumns+` FROM versions ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := []*Version{}
	for rows.Next() {
		v, err := scanSQLiteVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

func (s *SQLiteVersionStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM versions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLiteVersionStore) AppendNext(ctx context.Context, build BuildFunc) (*Version, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	previous, err := findLatestSQLite(ctx, tx)
	if err != nil && !errors.Is(err, ErrVersionNotFound) {
		return nil, err
	}

	next, err := build(previous)
	if err != nil {
		return nil, err
	}

	if err := insertSQLite(ctx, tx, next); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit version: %w", err)
	}
	return next, nil
}

func insertSQLite(ctx context.Context, q queryer, v *Version) error {
	added, err := json.Marshal(nonNil(v.AddedWords))
	if err != nil {
		return fmt.Errorf("marshal added words: %w", err)
	}
	removed, err := json.Marshal(nonNil(v.RemovedWords))
	if err != nil {
		return fmt.Errorf("marshal removed words: %w", err)
	}

	_, err = q.ExecContext(
		ctx,
		`INSERT INTO versions (`+sqliteVersionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID,
		v.Timestamp,
		string(added),
		string(removed),
		v.OldLength,
		v.NewLength,
		v.Content,
		v.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func findLatestSQLite(ctx context.Context, q queryer) (*Version, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sqliteVersionColumns+` FROM versions ORDER BY seq DESC LIMIT 1`)
	v, err := scanSQLiteVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("get latest version: %w", err)
	}
	return v, nil
}

func scanSQLiteVersion(row rowScanner) (*Version, error) {
	var (
		v         Version
		added     string
		removed   string
		createdAt string
	)
	if err := row.Scan(
		&v.ID,
		&v.Timestamp,
		&added,
		&removed,
		&v.OldLength,
		&v.NewLength,
		&v.Content,
		&createdAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(added), &v.AddedWords); err != nil {
		return nil, fmt.Errorf("decode added words for %s: %w", v.ID, err)
	}
	if err := json.Unmarshal([]byte(removed), &v.RemovedWords); err != nil {
		return nil, fmt.Errorf("decode removed words for %s: %w", v.ID, err)
	}
	v.AddedWords = nonNil(v.AddedWords)
	v.RemovedWords = nonNil(v.RemovedWords)

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", v.ID, err)
	}
	v.CreatedAt = parsed
	return &v, nil
}

var _ IVersionStore = (*SQLiteVersionStore)(nil)
