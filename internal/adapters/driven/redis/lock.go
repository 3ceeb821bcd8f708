package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "faqbot:lock:"

// Lock implements DistributedLock on a Redis string key holding the owner ID.
// Ingestion runs hold it for the index location they write, so two replicas
// sharing one Redis never rebuild the same index at once.
type Lock struct {
	client  *redis.Client
	ownerID string
}

// NewLock creates a Redis-backed lock with a fresh owner ID.
func NewLock(client *redis.Client) *Lock {
	hostname, _ := os.Hostname()
	return &Lock{
		client:  client,
		ownerID: fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()),
	}
}

func lockKey(name string) string {
	return lockPrefix + name
}

// Acquire sets the key only if it is absent. A zero ttl never expires.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	args := redis.SetArgs{Mode: "NX"}
	if ttl > 0 {
		args.TTL = ttl
	}
	err := l.client.SetArgs(ctx, lockKey(name), l.ownerID, args).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return true, nil
}

// ownedScript applies an operation to the lock key only while ARGV[1] owns it.
// ARGV[2] is "release" or "extend"; for extend ARGV[3] is the new ttl in ms,
// where 0 drops the expiry. Returns 1 when applied and 0 when not owned.
var ownedScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
if ARGV[2] == "release" then
	redis.call("DEL", KEYS[1])
elseif ARGV[3] == "0" then
	redis.call("PERSIST", KEYS[1])
else
	redis.call("PEXPIRE", KEYS[1], ARGV[3])
end
return 1
`)

func (l *Lock) owned(ctx context.Context, name, op string, ttl time.Duration) (bool, error) {
	n, err := ownedScript.Run(ctx, l.client, []string{lockKey(name)}, l.ownerID, op, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release deletes the key if this instance owns it.
// Safe to call even if the lock is not held or has expired.
func (l *Lock) Release(ctx context.Context, name string) error {
	if _, err := l.owned(ctx, name, "release", 0); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Extend resets the expiry of a lock held by this instance.
// It returns ErrLockNotHeld once the key expired or changed owner.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := l.owned(ctx, name, "extend", ttl)
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrLockNotHeld, name)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID returns the unique identifier for this lock instance
func (l *Lock) OwnerID() string {
	return l.ownerID
}
