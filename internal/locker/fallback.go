package locker

import (
	"context"
	"fmt"
	"time"
)

// Fallback tries each child locker in sequence until one succeeds
// (spec.md §5).
type Fallback struct {
	Children []Locker
}

func NewFallback(children ...Locker) *Fallback { return &Fallback{Children: children} }

func (f *Fallback) Acquire(ctx context.Context, key string, timeout time.Duration) (Outcome, error) {
	var lastErr error
	for _, c := range f.Children {
		outcome, err := c.Acquire(ctx, key, timeout)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
	}
	return Locked, fmt.Errorf("fallback locker: all children failed: %w", lastErr)
}

func (f *Fallback) Ping(ctx context.Context, key string) (bool, error) {
	var lastErr error
	for _, c := range f.Children {
		ok, err := c.Ping(ctx, key)
		if err == nil {
			return ok, nil
		}
		lastErr = err
	}
	return false, lastErr
}

func (f *Fallback) Release(ctx context.Context, key string) error {
	var lastErr error
	for _, c := range f.Children {
		if err := c.Release(ctx, key); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (f *Fallback) ClearAllLocks(ctx context.Context) error {
	var lastErr error
	for _, c := range f.Children {
		if err := c.ClearAllLocks(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
