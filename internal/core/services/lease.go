package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// ingestLease holds the ingestion lock for one build and renews it every
// third of its TTL. Losing the lock cancels the build context with a cause
// wrapping ErrIngestionInProgress.
type ingestLease struct {
	lock   driven.DistributedLock
	name   string
	ttl    time.Duration
	logger *slog.Logger

	cancel context.CancelCauseFunc
	stop   chan struct{}
	done   chan struct{}
}

// acquireLease takes the lock for location and starts renewing it.
// The returned context ends when ctx does or when the lock is lost.
// With no lock configured it returns a nil lease and ctx unchanged.
func (s *IngestionService) acquireLease(ctx context.Context, location string) (*ingestLease, context.Context, error) {
	if s.lock == nil {
		return nil, ctx, nil
	}

	name := "ingest:" + location
	acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire ingestion lock: %w", err)
	}
	if !acquired {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrIngestionInProgress, location)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	l := &ingestLease{
		lock:   s.lock,
		name:   name,
		ttl:    s.lockTTL,
		logger: s.logger,
		cancel: cancel,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.keepAlive(runCtx)
	return l, runCtx, nil
}

func (l *ingestLease) keepAlive(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
	defer ticker.Stop()

	renewed := time.Now()
	for {
		select {
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := l.lock.Extend(ctx, l.name, l.ttl)
		switch {
		case err == nil:
			renewed = time.Now()
			l.logger.Debug("extended ingestion lock", "lock", l.name, "ttl", l.ttl)
		case ctx.Err() != nil:
			return
		case errors.Is(err, domain.ErrLockNotHeld), time.Since(renewed) >= l.ttl:
			l.logger.Error("ingestion lock lost", "lock", l.name, "error", err)
			l.cancel(fmt.Errorf("%w: lock %s lost: %w", domain.ErrIngestionInProgress, l.name, err))
			return
		default:
			l.logger.Warn("failed to extend ingestion lock, retrying", "lock", l.name, "error", err)
		}
	}
}

// release stops renewal and gives the lock back, even when ctx was cancelled.
func (l *ingestLease) release(ctx context.Context) {
	if l == nil {
		return
	}
	close(l.stop)
	<-l.done
	l.cancel(nil)
	if err := l.lock.Release(context.WithoutCancel(ctx), l.name); err != nil {
		l.logger.Warn("failed to release ingestion lock", "lock", l.name, "error", err)
	}
}

// leaseLost returns the cause recorded when the lease behind ctx was lost.
func leaseLost(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, domain.ErrIngestionInProgress) {
		return cause
	}
	return nil
}
