package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.IndexStore = (*IndexStore)(nil)

const (
	indexPrefix     = "faqbot:index:"
	indexMetaPrefix = "faqbot:index:meta:"
)

// IndexStore implements driven.IndexStore using Redis strings.
// Each location maps to one key; a sibling hash records when and how
// large the last write was.
type IndexStore struct {
	client *redis.Client
}

// NewIndexStore creates a new Redis-backed IndexStore
func NewIndexStore(client *redis.Client) *IndexStore {
	return &IndexStore{client: client}
}

// Connect parses a redis:// URL and verifies the server is reachable
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// Save replaces the blob and its metadata in one transaction
func (s *IndexStore) Save(ctx context.Context, location string, blob []byte) error {
	if location == "" {
		return fmt.Errorf("%w: empty index location", domain.ErrInvalidInput)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, indexPrefix+location, blob, 0)
		pipe.HSet(ctx, indexMetaPrefix+location,
			"bytes", len(blob),
			"saved_at", time.Now().UTC().Format(time.RFC3339),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save index %s: %w", location, err)
	}
	return nil
}

// Load returns the blob stored at location
func (s *IndexStore) Load(ctx context.Context, location string) ([]byte, error) {
	data, err := s.client.Get(ctx, indexPrefix+location).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, location)
		}
		return nil, fmt.Errorf("load index %s: %w", location, err)
	}
	return data, nil
}

// SavedAt returns when the index at location was last written
func (s *IndexStore) SavedAt(ctx context.Context, location string) (time.Time, error) {
	v, err := s.client.HGet(ctx, indexMetaPrefix+location, "saved_at").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, location)
		}
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}

// Ping checks if Redis is reachable
func (s *IndexStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
