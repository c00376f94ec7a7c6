// Package sqlite provides a SQLite-backed record store for devices where a
// single database file is preferred over one file per record.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bft-labs/offsync/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
    namespace  TEXT NOT NULL,
    name       TEXT NOT NULL,
    data       BLOB NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, name)
);
`

// Store implements ports.Storage on a SQLite database.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// a single connection keeps writes serialized
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns one record.
func (s *Store) Load(ctx context.Context, namespace, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkKey(namespace, name); err != nil {
		return nil, err
	}
	var data []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT data FROM records WHERE namespace = ? AND name = ?`,
		namespace, name,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", namespace, name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load record: %w", err)
	}
	return data, nil
}

// Save upserts one record.
func (s *Store) Save(ctx context.Context, namespace, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(namespace, name); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO records (namespace, name, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		namespace, name, data, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// Delete removes one record; absent records are ignored.
func (s *Store) Delete(ctx context.Context, namespace, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(namespace, name); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM records WHERE namespace = ? AND name = ?`,
		namespace, name,
	); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// checkKey applies the same naming rules as the file store so records can
// move between backends.
func checkKey(namespace, name string) error {
	if err := domain.ValidateSessionID(namespace); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid record name %q", name)
	}
	return nil
}
