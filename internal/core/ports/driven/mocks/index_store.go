package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// MockIndexStore is an in-memory IndexStore for testing
type MockIndexStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	saves int

	SaveFn func(location string, blob []byte) error
	LoadFn func(location string) ([]byte, error)
}

// NewMockIndexStore creates a new MockIndexStore
func NewMockIndexStore() *MockIndexStore {
	return &MockIndexStore{
		blobs: make(map[string][]byte),
	}
}

func (m *MockIndexStore) Save(ctx context.Context, location string, blob []byte) error {
	if m.SaveFn != nil {
		return m.SaveFn(location, blob)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.blobs[location] = cp
	m.saves++
	return nil
}

func (m *MockIndexStore) Load(ctx context.Context, location string) ([]byte, error) {
	if m.LoadFn != nil {
		return m.LoadFn(location)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[location]
	if !ok {
		return nil, domain.ErrIndexNotFound
	}
	return blob, nil
}

func (m *MockIndexStore) Ping(ctx context.Context) error {
	return nil
}

// Put stores a blob directly (for test setup)
func (m *MockIndexStore) Put(location string, blob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[location] = blob
}

// Saves returns how many times Save succeeded
func (m *MockIndexStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Has reports whether a blob exists at location
func (m *MockIndexStore) Has(location string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[location]
	return ok
}
