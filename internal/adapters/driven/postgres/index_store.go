package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexStore = (*IndexStore)(nil)

const (
	upsertIndexSQL = `
		INSERT INTO faqbot_indexes (location, blob, size_bytes, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (location) DO UPDATE SET
			blob = EXCLUDED.blob,
			size_bytes = EXCLUDED.size_bytes,
			updated_at = EXCLUDED.updated_at`

	selectIndexSQL = `SELECT blob FROM faqbot_indexes WHERE location = $1`
)

// IndexStore implements driven.IndexStore using the faqbot_indexes table
type IndexStore struct {
	db *DB
}

// NewIndexStore creates a new PostgreSQL-backed IndexStore
func NewIndexStore(db *DB) *IndexStore {
	return &IndexStore{db: db}
}

// Save upserts the blob for location
func (s *IndexStore) Save(ctx context.Context, location string, blob []byte) error {
	if location == "" {
		return fmt.Errorf("%w: empty index location", domain.ErrInvalidInput)
	}
	if _, err := s.db.ExecContext(ctx, upsertIndexSQL, location, blob, len(blob)); err != nil {
		return fmt.Errorf("save index %s: %w", location, err)
	}
	return nil
}

// Load returns the blob stored for location
func (s *IndexStore) Load(ctx context.Context, location string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, selectIndexSQL, location).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, location)
		}
		return nil, fmt.Errorf("load index %s: %w", location, err)
	}
	return blob, nil
}

// Ping checks if the database is reachable
func (s *IndexStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
