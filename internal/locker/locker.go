// Package locker implements the named, cross-process exclusive locks
// that guarantee at-most-one concurrent metatile render (spec.md §4.3(c),
// §5).
package locker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome is the result of an Acquire attempt (spec.md §4.3(c)).
type Outcome int

const (
	// Acquired means this caller now holds the lock and must render.
	Acquired Outcome = iota
	// Locked means another worker holds the lock; the caller must poll
	// and re-read once it eventually clears.
	Locked
	// NoEntry means the lock disappeared between calls — read as
	// "someone finished, re-read" (spec.md §4.3(c)).
	NoEntry
)

// Locker is the capability trait disk, memcache, and fallback lockers
// implement (spec.md §5).
type Locker interface {
	Acquire(ctx context.Context, key string, timeout time.Duration) (Outcome, error)
	Ping(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	ClearAllLocks(ctx context.Context) error
}

// WaitAndAcquire implements the poll loop from spec.md §4.3(c): retry
// Acquire every retryInterval until Acquired/NoEntry or timeout elapses,
// at which point the stale lock is force-removed and treated as cleared.
func WaitAndAcquire(ctx context.Context, l Locker, key string, timeout, retryInterval time.Duration) (Outcome, error) {
	deadline := time.Now().Add(timeout)
	for {
		outcome, err := l.Acquire(ctx, key, timeout)
		if err != nil {
			return outcome, err
		}
		if outcome == Acquired || outcome == NoEntry {
			return outcome, nil
		}
		if time.Now().After(deadline) {
			// Lock held past timeout: presume the holder dead, force
			// remove, and retry once as a fresh acquisition (spec.md §5,
			// §7 "Lock wait timeout: force-removes the lock, logs a
			// warning, retries").
			logrus.WithField("key", key).Warn("locker: lock wait timed out, forcing removal")
			_ = l.Release(ctx, key)
			return l.Acquire(ctx, key, timeout)
		}
		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}
