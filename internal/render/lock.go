package render

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/arx-os/mapcache/internal/locker"
	"github.com/arx-os/mapcache/internal/tile"
)

// renderMetatileLocked implements spec.md §4.3 step (c)-(d): acquire the
// metatile's named lock, render+split+store exactly once per Acquired
// outcome, and always release the lock on the way out.
func (ts *Tileset) renderMetatileLocked(ctx context.Context, mt *tile.MetaTile) error {
	key := mt.ResourceKey()
	outcome, err := locker.WaitAndAcquire(ctx, ts.Locker, key, ts.LockTimeout, ts.RetryInterval)
	if err != nil {
		return fmt.Errorf("render: metatile %s: lock: %w", key, err)
	}
	return ts.actOnLockOutcome(ctx, mt, key, outcome)
}

// tryRenderMetatile implements the non-blocking reload path of spec.md
// §4.3 step (f): attempt the metatile lock exactly once without waiting.
// If another worker already holds it, the caller must not block and
// instead keeps serving its stale tile.
func (ts *Tileset) tryRenderMetatile(ctx context.Context, mt *tile.MetaTile) (rendered bool, err error) {
	key := mt.ResourceKey()
	outcome, err := ts.Locker.Acquire(ctx, key, ts.LockTimeout)
	if err != nil {
		return false, fmt.Errorf("render: metatile %s: lock: %w", key, err)
	}
	if outcome != locker.Acquired {
		return false, nil
	}
	if err := ts.actOnLockOutcome(ctx, mt, key, outcome); err != nil {
		return false, err
	}
	return true, nil
}

func (ts *Tileset) actOnLockOutcome(ctx context.Context, mt *tile.MetaTile, key string, outcome locker.Outcome) error {
	switch outcome {
	case locker.Locked:
		// Another worker rendered it while we waited; nothing to do.
		return nil
	case locker.NoEntry:
		// The lock vanished mid-wait: someone else finished. Re-read by
		// the caller will see the now-cached tiles.
		return nil
	case locker.Acquired:
		defer func() {
			if err := ts.Locker.Release(ctx, key); err != nil {
				logrus.WithField("key", key).WithError(err).Warn("render: failed to release metatile lock")
			}
		}()
		if err := ts.renderAndSplit(ctx, mt); err != nil {
			return err
		}
		return ts.storeChildren(ctx, mt)
	default:
		return fmt.Errorf("render: metatile %s: unknown lock outcome %v", key, outcome)
	}
}
