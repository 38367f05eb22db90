// Package store persists learned override records between sessions in a
// SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tonegrid/internal/override"
)

// Schema for the override snapshot store. The ordering column preserves
// recency: 0 is the most recently used record.
const schema = `
CREATE TABLE IF NOT EXISTS overrides (
    signature    TEXT PRIMARY KEY,
    value        TEXT NOT NULL,
    observed_ns  INTEGER NOT NULL,
    ordering     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_overrides_ordering ON overrides(ordering);
`

// Store is the SQLite override store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path and applies the
// schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveOverrides replaces the stored snapshot with the given records, which
// must be in most-recently-used-first order as produced by the model.
func (s *Store) SaveOverrides(records []override.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM overrides`); err != nil {
		return fmt.Errorf("clear overrides: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO overrides (signature, value, observed_ns, ordering)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.Exec(rec.Signature, rec.Value, rec.Timestamp.UnixNano(), i); err != nil {
			return fmt.Errorf("insert override: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadOverrides returns the stored snapshot in most-recently-used-first
// order.
func (s *Store) LoadOverrides() ([]override.Record, error) {
	rows, err := s.db.Query(`
		SELECT signature, value, observed_ns FROM overrides ORDER BY ordering ASC`)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	var records []override.Record
	for rows.Next() {
		var rec override.Record
		var ns int64
		if err := rows.Scan(&rec.Signature, &rec.Value, &ns); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		rec.Timestamp = time.Unix(0, ns)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return records, nil
}
