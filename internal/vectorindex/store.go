package vectorindex

import (
	"context"
	"fmt"

	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Persist serializes idx and writes it to location, returning the blob size.
func Persist(ctx context.Context, store driven.IndexStore, location string, idx *Index) (int, error) {
	blob, err := Marshal(idx)
	if err != nil {
		return 0, err
	}
	if err := store.Save(ctx, location, blob); err != nil {
		return 0, fmt.Errorf("save index %s: %w", location, err)
	}
	return len(blob), nil
}

// Load reads and parses the index at location.
// Missing indexes surface as ErrIndexNotFound, unreadable ones as ErrIndexCorrupt.
func Load(ctx context.Context, store driven.IndexStore, location string) (*Index, error) {
	blob, err := store.Load(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", location, err)
	}
	return Unmarshal(blob)
}
