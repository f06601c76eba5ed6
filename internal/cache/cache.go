// Package cache defines the uniform tile cache back-end interface and the
// retry/readonly/rule-hiding wrapper shared by every concrete back-end
// (spec.md §4.2).
package cache

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/tile"
)

// Result is the outcome of a Get call.
type Result int

const (
	Miss Result = iota
	Hit
	Reload
)

// Entry is the raw payload a back-end stores and retrieves: encoded
// bytes plus the write timestamp, matching the "[encoded_bytes ||
// 8-byte little-endian mtime]" layout shared by the key-value back-ends
// (spec.md §4.2). Disk and object-store back-ends store Data without the
// timestamp trailer and report Mtime from file or object metadata.
type Entry struct {
	Data  []byte
	Mtime time.Time
	// Blank, when non-nil, means the back-end stored (or is about to
	// store) this tile as a uniform-color sentinel rather than encoded
	// bytes (spec.md §4.2 "detect_blank").
	Blank *[4]uint8
}

// Backend is the contract every cache implementation satisfies
// (spec.md §4.2).
type Backend interface {
	Name() string
	TileGet(ctx context.Context, t *tile.Tile) (Entry, Result, error)
	TileSet(ctx context.Context, t *tile.Tile, e Entry) error
	TileExists(ctx context.Context, t *tile.Tile) (bool, error)
	TileDelete(ctx context.Context, t *tile.Tile) error
}

// MultiSetter is implemented by back-ends that can store several tiles
// as one unit (spec.md §4.3(d), §5 "tile_multi_set is atomic in
// effect"). Back-ends without a native bulk op fall back to looping
// TileSet, handled by the Wrapper.
type MultiSetter interface {
	TileMultiSet(ctx context.Context, entries map[*tile.Tile]Entry) error
}

// RetryPolicy configures the wrapper's retry/backoff behavior
// (spec.md §4.2, §7).
type RetryPolicy struct {
	RetryCount int
	RetryDelay time.Duration
}

// Wrapper enforces the policy shared by every back-end: retry with
// exponential backoff, readonly silence, and rule-hidden blank
// short-circuiting (spec.md §4.2).
type Wrapper struct {
	Backend     Backend
	Policy      RetryPolicy
	ReadOnly    bool
	RuleLookup  func(t *tile.Tile) (*grid.Rule, bool)
	TileWidth   int
	TileHeight  int
	Format      string
}

// Get reads a tile, honoring rule-hidden short-circuiting and retrying
// transient back-end errors with exponential backoff (spec.md §4.2).
// Errors from a failed attempt are cleared between retries so only the
// last one survives.
func (w *Wrapper) Get(ctx context.Context, t *tile.Tile) (Entry, Result, error) {
	if w.RuleLookup != nil {
		if rule, ok := w.RuleLookup(t); ok {
			ext, err := t.Extent()
			if err == nil && !rule.Visible(ext) {
				c := rule.HiddenColor
				img := raster.Solid(w.TileWidth, w.TileHeight, color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]}, w.Format)
				t.Image = img
				t.Nodata = false
				return Entry{}, Hit, nil
			}
		}
	}

	var entry Entry
	var result Result
	var lastErr error
	delay := w.Policy.RetryDelay
	attempts := w.Policy.RetryCount + 1
	for i := 0; i < attempts; i++ {
		lastErr = nil
		entry, result, lastErr = w.Backend.TileGet(ctx, t)
		if lastErr == nil {
			return entry, result, nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return Entry{}, Miss, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return Entry{}, Miss, fmt.Errorf("cache %s: get after %d attempts: %w", w.Backend.Name(), attempts, lastErr)
}

// Set writes a tile, silently doing nothing for readonly tiles/tilesets
// (spec.md §4.2).
func (w *Wrapper) Set(ctx context.Context, t *tile.Tile, e Entry) error {
	if w.ReadOnly || w.tileReadOnly(t) {
		return nil
	}
	return w.retry(func() error { return w.Backend.TileSet(ctx, t, e) })
}

// Delete removes a tile, silently doing nothing for readonly
// tiles/tilesets (spec.md §4.2, "Readonly safety" invariant spec.md §8).
func (w *Wrapper) Delete(ctx context.Context, t *tile.Tile) error {
	if w.ReadOnly || w.tileReadOnly(t) {
		return nil
	}
	return w.retry(func() error { return w.Backend.TileDelete(ctx, t) })
}

// MultiSet stores several tiles as one unit when the back-end supports
// it, otherwise loops TileSet (spec.md §4.3(d)).
func (w *Wrapper) MultiSet(ctx context.Context, entries map[*tile.Tile]Entry) error {
	if w.ReadOnly {
		return nil
	}
	filtered := make(map[*tile.Tile]Entry, len(entries))
	for t, e := range entries {
		if !w.tileReadOnly(t) {
			filtered[t] = e
		}
	}
	if ms, ok := w.Backend.(MultiSetter); ok {
		return w.retry(func() error { return ms.TileMultiSet(ctx, filtered) })
	}
	for t, e := range filtered {
		if err := w.Set(ctx, t, e); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wrapper) tileReadOnly(t *tile.Tile) bool {
	if rule, ok := w.ruleForTile(t); ok {
		return rule.ReadOnly
	}
	return false
}

func (w *Wrapper) ruleForTile(t *tile.Tile) (*grid.Rule, bool) {
	if w.RuleLookup == nil {
		return nil, false
	}
	return w.RuleLookup(t)
}

func (w *Wrapper) retry(op func() error) error {
	var lastErr error
	delay := w.Policy.RetryDelay
	attempts := w.Policy.RetryCount + 1
	for i := 0; i < attempts; i++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("cache %s: after %d attempts: %w", w.Backend.Name(), attempts, lastErr)
}
