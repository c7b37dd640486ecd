// Package catalog is the persistence layer: a single-file SQLite database
// holding identities (persons, dogs), ingested images, detections, and face
// embeddings. One writer at a time; reference catalogs open read-only.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages a connection to one catalog database file.
type Store struct {
	db       *sql.DB
	readOnly bool
}

// Open opens (creating if necessary) a catalog file for read-write access
// and applies any pending migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("catalog path is required")
	}

	dsn := "file:" + url.PathEscape(path) +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// Single writer. The engine never mutates a row from two goroutines.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// OpenReadOnly opens an existing catalog file without write access. Used
// for reference catalogs consulted during resolution; no migrations run.
func OpenReadOnly(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("catalog path is required")
	}

	dsn := "file:" + url.PathEscape(path) + "?mode=ro&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}

	s := &Store{db: db, readOnly: true}
	if err := s.ValidateStructure(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// ReadOnly reports whether the store was opened without write access.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// DB returns the underlying sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing catalog: %w", err)
		}
	}
	return nil
}

// QueryRow executes a query that returns a single row.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return rows, nil
}

// Exec executes a query that doesn't return rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	return result, nil
}

// BeginTx starts a transaction. Merge operations wrap each unit of work in
// its own transaction so a failure rolls back that unit only.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return tx, nil
}
