package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// appendLockKey identifies the advisory lock that serializes AppendNext
// across every process sharing the database.
const appendLockKey int64 = 0x61756469745f7631

const postgresVersionColumns = `id, timestamp_text, added_words, removed_words, old_length, new_length, content, created_at`

// PostgresVersionStore implements IVersionStore using PostgreSQL
type PostgresVersionStore struct {
	db *sql.DB
}

// NewPostgresVersionStore creates a new PostgreSQL version store
func NewPostgresVersionStore(connStr string) (*PostgresVersionStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresVersionStore{db: db}

	// Create the versions table if it doesn't exist
	if err := store.createTable(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *PostgresVersionStore) Close() error {
	return s.db.Close()
}

func (s *PostgresVersionStore) Insert(ctx context.Context, v *Version) error {
	return insertPostgres(ctx, s.db, v)
}

func (s *PostgresVersionStore) FindLatest(ctx context.Context) (*Version, error) {
	return findLatestPostgres(ctx, s.db)
}

func (s *PostgresVersionStore) FindAll(ctx context.Context) ([]*Version, error) {
	query := `SELECT ` + postgresVersionColumns + ` FROM versions ORDER BY seq DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := []*Version{}
	for rows.Next() {
		v, err := scanPostgresVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return versions, nil
}

func (s *PostgresVersionStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM versions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete version: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (s *PostgresVersionStore) AppendNext(ctx context.Context, build BuildFunc) (*Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return nil, fmt.Errorf("failed to acquire append lock: %w", err)
	}

	previous, err := findLatestPostgres(ctx, tx)
	if err != nil && !errors.Is(err, ErrVersionNotFound) {
		return nil, err
	}

	next, err := build(previous)
	if err != nil {
		return nil, err
	}

	if err := insertPostgres(ctx, tx, next); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit version: %w", err)
	}

	return next, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertPostgres(ctx context.Context, q queryer, v *Version) error {
	query := `
		INSERT INTO versions (` + postgresVersionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := q.ExecContext(ctx, query,
		v.ID,
		v.Timestamp,
		pq.Array(nonNil(v.AddedWords)),
		pq.Array(nonNil(v.RemovedWords)),
		v.OldLength,
		v.NewLength,
		v.Content,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}

	return nil
}

func findLatestPostgres(ctx context.Context, q queryer) (*Version, error) {
	query := `SELECT ` + postgresVersionColumns + ` FROM versions ORDER BY seq DESC LIMIT 1`

	v, err := scanPostgresVersion(q.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}

	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresVersion(row rowScanner) (*Version, error) {
	v := &Version{}
	var added, removed pq.StringArray
	err := row.Scan(
		&v.ID,
		&v.Timestamp,
		&added,
		&removed,
		&v.OldLength,
		&v.NewLength,
		&v.Content,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.AddedWords = nonNil(added)
	v.RemovedWords = nonNil(removed)
	return v, nil
}

// Compile-time check to ensure PostgresVersionStore implements IVersionStore
var _ IVersionStore = (*PostgresVersionStore)(nil)
