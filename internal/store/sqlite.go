package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/sethvargo/go-retry"
)

// Schema for the state store. One row per (user, field).
const schema = `
CREATE TABLE IF NOT EXISTS state (
    user_id     TEXT NOT NULL,
    field       TEXT NOT NULL,
    value       TEXT NOT NULL,
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (user_id, field)
);
`

const upsert = `
INSERT INTO state (user_id, field, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

// SQLite is the durable store implementation backed by a local database
// file. WAL mode keeps single-writer contention short; transient busy
// errors are retried with a constant backoff.
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the database at the given path and applies the
// schema.
func Open(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the stored value for key.
func (s *SQLite) Get(ctx context.Context, key Key) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM state WHERE user_id = ? AND field = ?`,
		key.UserID, key.Field,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &PersistenceError{Op: "get " + key.String(), Err: err}
	}
	return value, true, nil
}

// Set writes a single field.
func (s *SQLite) Set(ctx context.Context, key Key, value string) error {
	err := s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, upsert, key.UserID, key.Field, value, time.Now().UnixMilli())
		return err
	})
	if err != nil {
		return &PersistenceError{Op: "set " + key.String(), Err: err}
	}
	return nil
}

// SetMany writes several fields of one user's record in a single
// transaction, so readers never observe a half-written record.
func (s *SQLite) SetMany(ctx context.Context, userID string, fields map[string]string) error {
	err := s.withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		now := time.Now().UnixMilli()
		for field, value := range fields {
			if _, err := tx.ExecContext(ctx, upsert, userID, field, value, now); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return &PersistenceError{Op: "set record for " + userID, Err: err}
	}
	return nil
}

// withRetry retries transient SQLITE_BUSY / SQLITE_LOCKED failures.
func (s *SQLite) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var serr sqlite3.Error
		if errors.As(err, &serr) && (serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked) {
			return retry.RetryableError(err)
		}
		return err
	})
}
