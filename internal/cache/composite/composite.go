// Package composite implements the cache back-ends built from other
// back-ends rather than a storage driver: the fallback/multi-tier chain
// and the conditional router (spec.md §4.2 "composite caches").
// Grounded on internal/storage/coordinator.go's multi-backend
// coordination in the teacher repo.
package composite

import (
	"context"
	"fmt"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/tile"
)

// Fallback (a.k.a. "multi-tier") reads from the first child that has the
// tile and, on a miss, writes it back into every earlier (faster) tier
// it passed through — the classic read-through cache hierarchy
// (spec.md §4.2).
type Fallback struct {
	Tiers []cache.Backend
}

func (f *Fallback) Name() string { return "multitier" }

func (f *Fallback) TileGet(ctx context.Context, t *tile.Tile) (cache.Entry, cache.Result, error) {
	var lastErr error
	for i, tier := range f.Tiers {
		e, result, err := tier.TileGet(ctx, t)
		if err != nil {
			lastErr = err
			continue
		}
		if result == cache.Miss {
			continue
		}
		for j := 0; j < i; j++ {
			_ = f.Tiers[j].TileSet(ctx, t, e)
		}
		return e, result, nil
	}
	if lastErr != nil {
		return cache.Entry{}, cache.Miss, fmt.Errorf("composite: multitier get: %w", lastErr)
	}
	return cache.Entry{}, cache.Miss, nil
}

// TileSet writes to every tier, returning the first error after every
// tier has been attempted (spec.md §5 "tile_multi_set is atomic in
// effect" — here extended to single sets across tiers).
func (f *Fallback) TileSet(ctx context.Context, t *tile.Tile, e cache.Entry) error {
	var firstErr error
	for _, tier := range f.Tiers {
		if err := tier.TileSet(ctx, t, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("composite: multitier set: %w", firstErr)
	}
	return nil
}

func (f *Fallback) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	for _, tier := range f.Tiers {
		ok, err := tier.TileExists(ctx, t)
		if err == nil && ok {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fallback) TileDelete(ctx context.Context, t *tile.Tile) error {
	var firstErr error
	for _, tier := range f.Tiers {
		if err := tier.TileDelete(ctx, t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Rule selects a child back-end for tiles matching Grid/MinZoom/MaxZoom
// (empty Grid or a negative bound means "don't care"), per spec.md §4.2
// "composite caches" conditional routing.
type Rule struct {
	Backend cache.Backend
	Grid    string
	MinZoom int
	MaxZoom int // -1 means unbounded
}

func (r Rule) matches(t *tile.Tile) bool {
	if r.Grid != "" && t.GridLink.Grid.Name != r.Grid {
		return false
	}
	if t.Z < r.MinZoom {
		return false
	}
	if r.MaxZoom >= 0 && t.Z > r.MaxZoom {
		return false
	}
	return true
}

// Composite routes each tile to the first matching Rule, falling back to
// Default when none match.
type Composite struct {
	Rules   []Rule
	Default cache.Backend
}

func (c *Composite) Name() string { return "composite" }

func (c *Composite) backendFor(t *tile.Tile) (cache.Backend, error) {
	for _, r := range c.Rules {
		if r.matches(t) {
			return r.Backend, nil
		}
	}
	if c.Default != nil {
		return c.Default, nil
	}
	return nil, fmt.Errorf("composite: no rule matches tile and no default back-end configured")
}

func (c *Composite) TileGet(ctx context.Context, t *tile.Tile) (cache.Entry, cache.Result, error) {
	b, err := c.backendFor(t)
	if err != nil {
		return cache.Entry{}, cache.Miss, err
	}
	return b.TileGet(ctx, t)
}

func (c *Composite) TileSet(ctx context.Context, t *tile.Tile, e cache.Entry) error {
	b, err := c.backendFor(t)
	if err != nil {
		return err
	}
	return b.TileSet(ctx, t, e)
}

func (c *Composite) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	b, err := c.backendFor(t)
	if err != nil {
		return false, err
	}
	return b.TileExists(ctx, t)
}

func (c *Composite) TileDelete(ctx context.Context, t *tile.Tile) error {
	b, err := c.backendFor(t)
	if err != nil {
		return err
	}
	return b.TileDelete(ctx, t)
}
