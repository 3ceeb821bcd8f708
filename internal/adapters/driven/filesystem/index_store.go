package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore keeps serialized indexes as files on local disk.
// Locations are file paths, resolved against Root when relative.
type IndexStore struct {
	Root string
}

// NewIndexStore creates a file-backed index store rooted at root.
// An empty root resolves locations against the working directory.
func NewIndexStore(root string) *IndexStore {
	return &IndexStore{Root: root}
}

func (s *IndexStore) path(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("%w: empty index location", domain.ErrInvalidInput)
	}
	if filepath.IsAbs(location) || s.Root == "" {
		return filepath.Clean(location), nil
	}
	return filepath.Join(s.Root, location), nil
}

// Save writes the blob to a temporary file next to the target and renames it
// into place, so readers never observe a partially written index.
func (s *IndexStore) Save(ctx context.Context, location string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(location)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod index: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename index into place: %w", err)
	}
	return nil
}

// Load reads the blob stored at location
func (s *IndexStore) Load(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(location)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	return data, nil
}

// Ping verifies the root directory is accessible when one is configured
func (s *IndexStore) Ping(ctx context.Context) error {
	if s.Root == "" {
		return nil
	}
	info, err := os.Stat(s.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // Created on first save
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("index root %s is not a directory", s.Root)
	}
	return nil
}
