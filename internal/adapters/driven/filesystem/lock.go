package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// unreadableGrace is how long a lock file without a parsable record counts
// as held before it is treated as debris from a crashed writer.
const unreadableGrace = time.Minute

var errUnreadableRecord = errors.New("unreadable lock record")

// Lock implements DistributedLock with lock files in a directory. It
// coordinates processes sharing one filesystem.
// A lock whose expiry has passed may be taken over by another owner.
//
// Records are written to a temp file first and linked or renamed into
// place, so readers never observe a half-written lock file.
type Lock struct {
	dir     string
	ownerID string
	now     func() time.Time
}

type lockRecord struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewLock creates a lock-file based lock that stores its files in dir
func NewLock(dir string) *Lock {
	hostname, _ := os.Hostname()
	return &Lock{
		dir:     dir,
		ownerID: fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()),
		now:     time.Now,
	}
}

// OwnerID returns the unique identifier for this lock instance
func (l *Lock) OwnerID() string {
	return l.ownerID
}

func (l *Lock) path(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return filepath.Join(l.dir, ".faqbot-"+safe+".lock")
}

// Acquire publishes the lock file exclusively. An expired lock file left
// behind by a crashed owner is removed and acquisition is retried once.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	path := l.path(name)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := l.create(path, ttl)
		if err != nil {
			return false, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			return true, nil
		}

		rec, err := readRecord(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue // released between create and read
		case errors.Is(err, errUnreadableRecord):
			if !l.debris(path) {
				return false, nil
			}
		case err != nil:
			return false, fmt.Errorf("acquire lock %s: %w", name, err)
		case rec.ExpiresAt.IsZero() || l.now().Before(rec.ExpiresAt):
			return false, nil
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("acquire lock %s: remove stale: %w", name, err)
		}
	}
	return false, nil
}

// create links a complete record into place; the link fails if path exists
func (l *Lock) create(path string, ttl time.Duration) (bool, error) {
	tmp, err := l.writeTemp(path, ttl)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *Lock) writeTemp(path string, ttl time.Duration) (string, error) {
	data, err := json.Marshal(l.record(ttl))
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (l *Lock) record(ttl time.Duration) lockRecord {
	rec := lockRecord{Owner: l.ownerID}
	if ttl > 0 {
		rec.ExpiresAt = l.now().Add(ttl).UTC()
	}
	return rec
}

// debris reports whether an unreadable lock file is old enough to discard
func (l *Lock) debris(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	return l.now().Sub(info.ModTime()) >= unreadableGrace
}

func readRecord(path string) (lockRecord, error) {
	var rec lockRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil || rec.Owner == "" {
		return rec, fmt.Errorf("%w: %s", errUnreadableRecord, path)
	}
	return rec, nil
}

// Release removes the lock file if this instance owns it.
// Safe to call even if the lock is not held or has expired.
func (l *Lock) Release(ctx context.Context, name string) error {
	path := l.path(name)
	rec, err := readRecord(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errUnreadableRecord) {
			return nil
		}
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	if rec.Owner != l.ownerID {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Extend pushes back the expiry of a lock held by this instance
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	path := l.path(name)
	rec, err := readRecord(path)
	if err != nil || rec.Owner != l.ownerID {
		return fmt.Errorf("%w: %s", domain.ErrLockNotHeld, name)
	}

	tmp, err := l.writeTemp(path, ttl)
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	return nil
}

// Ping checks the lock directory can be created
func (l *Lock) Ping(ctx context.Context) error {
	return os.MkdirAll(l.dir, 0o755)
}
