package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexStore = (*IndexStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS indexes (
	location   TEXT PRIMARY KEY,
	blob       BLOB NOT NULL,
	size_bytes INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`

// IndexStore keeps serialized indexes in an embedded SQLite database file
type IndexStore struct {
	db   *sql.DB
	path string
}

// NewIndexStore opens (creating if needed) the SQLite database at path
func NewIndexStore(path string) (*IndexStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL lets the API read while an ingestion run writes
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &IndexStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *IndexStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *IndexStore) Close() error {
	return s.db.Close()
}

// Save upserts the blob for location
func (s *IndexStore) Save(ctx context.Context, location string, blob []byte) error {
	if location == "" {
		return fmt.Errorf("%w: empty index location", domain.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexes (location, blob, size_bytes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET
			blob = excluded.blob,
			size_bytes = excluded.size_bytes,
			updated_at = excluded.updated_at`,
		location, blob, len(blob), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save index %s: %w", location, err)
	}
	return nil
}

// Load returns the blob stored for location
func (s *IndexStore) Load(ctx context.Context, location string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM indexes WHERE location = ?`, location).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, location)
		}
		return nil, fmt.Errorf("load index %s: %w", location, err)
	}
	return blob, nil
}

// Locations lists every stored index location in lexical order
func (s *IndexStore) Locations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT location FROM indexes ORDER BY location`)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// Ping checks the database is usable
func (s *IndexStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
