package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

const (
	mockOwner    = "mock-owner"
	foreignOwner = "external-owner"
)

// LockCall is one recorded call on MockDistributedLock.
type LockCall struct {
	Op   string // "acquire", "release" or "extend"
	Name string
	TTL  time.Duration
}

// MockDistributedLock keeps named leases in memory and records every call.
// Leases added through SetLockHeld belong to another owner, so Release and
// Extend from the code under test leave them alone.
type MockDistributedLock struct {
	mu     sync.Mutex
	leases map[string]lease
	calls  []LockCall

	// Custom behavior hooks (optional). Calls are recorded either way.
	AcquireFn func(name string, ttl time.Duration) (bool, error)
	ReleaseFn func(name string) error
	ExtendFn  func(name string, ttl time.Duration) error
	PingFn    func() error
}

type lease struct {
	owner     string
	expiresAt time.Time // zero never expires
}

func (l lease) live(now time.Time) bool {
	return l.expiresAt.IsZero() || now.Before(l.expiresAt)
}

func leaseUntil(owner string, ttl time.Duration) lease {
	l := lease{owner: owner}
	if ttl > 0 {
		l.expiresAt = time.Now().Add(ttl)
	}
	return l
}

// NewMockDistributedLock creates an empty mock lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{leases: make(map[string]lease)}
}

func (m *MockDistributedLock) record(op, name string, ttl time.Duration) {
	m.mu.Lock()
	m.calls = append(m.calls, LockCall{Op: op, Name: name, TTL: ttl})
	m.mu.Unlock()
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.record("acquire", name, ttl)
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.leases[name]; ok && cur.live(time.Now()) {
		return false, nil
	}
	m.leases[name] = leaseUntil(mockOwner, ttl)
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.record("release", name, 0)
	if m.ReleaseFn != nil {
		return m.ReleaseFn(name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.leases[name]; ok && cur.owner == mockOwner {
		delete(m.leases, name)
	}
	return nil
}

// Extend fails with ErrLockNotHeld unless the mock owner holds a live lease.
func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.record("extend", name, ttl)
	if m.ExtendFn != nil {
		return m.ExtendFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leases[name]
	if !ok || cur.owner != mockOwner || !cur.live(time.Now()) {
		return fmt.Errorf("%w: %s", domain.ErrLockNotHeld, name)
	}
	m.leases[name] = leaseUntil(mockOwner, ttl)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// IsHeld reports whether anyone holds a live lease on name.
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leases[name]
	return ok && cur.live(time.Now())
}

// SetLockHeld gives name to another owner for ttl.
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[name] = leaseUntil(foreignOwner, ttl)
}

// Calls returns a copy of the recorded calls in order.
func (m *MockDistributedLock) Calls() []LockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LockCall(nil), m.calls...)
}

// Extends counts the Extend calls made for name.
func (m *MockDistributedLock) Extends(name string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Op == "extend" && c.Name == name {
			n++
		}
	}
	return n
}
