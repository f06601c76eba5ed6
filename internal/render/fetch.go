package render

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/tile"
)

// blocking is read from ctx to honor spec.md §4.3(b)'s "the context is
// non-blocking" clause: requests that must answer immediately (e.g. an
// out-of-zoom Proxy path refusing to wait, or a capabilities probe) carry
// this key set to false.
type blockingKey struct{}

// WithBlocking marks whether ctx may block on a render/lock wait
// (spec.md §4.3 step b, §4.4 "non-blocking contexts must refuse").
func WithBlocking(ctx context.Context, blocking bool) context.Context {
	return context.WithValue(ctx, blockingKey{}, blocking)
}

func isBlocking(ctx context.Context) bool {
	v, ok := ctx.Value(blockingKey{}).(bool)
	if !ok {
		return true
	}
	return v
}

// Get resolves tile t through the tile-get protocol of spec.md §4.3:
// out-of-zoom reassembly when above max_cached_zoom, dimension assembly
// when configured, otherwise the leaf fetch.
func (ts *Tileset) Get(ctx context.Context, t *tile.Tile) error {
	if ts.GridLink.OutOfZoom != 0 && ts.GridLink.HasMaxCachedZoom && t.Z > ts.GridLink.MaxCachedZoom {
		return ts.getOutOfZoom(ctx, t)
	}
	if ts.DimensionAssemblyType != AssemblyNone && len(ts.Dimensions) > 0 {
		return ts.getWithDimensionAssembly(ctx, t)
	}
	if err := ts.resolveDimensionsExactlyOne(ctx, t); err != nil {
		return err
	}
	return ts.leafFetch(ctx, t, ts.ReadOnly)
}

// resolveDimensionsExactlyOne validates each requested dimension value
// and requires it expand to exactly one cache sub-value; more than one is
// an error outside the dimension-assembly path (spec.md §4.3 step 3).
func (ts *Tileset) resolveDimensionsExactlyOne(ctx context.Context, t *tile.Tile) error {
	if len(t.Dimensions) == 0 {
		return nil
	}
	ext, err := t.Extent()
	if err != nil {
		return fmt.Errorf("render: tile extent: %w", err)
	}
	for i, d := range t.Dimensions {
		dim := ts.dimensionByName(d.Name)
		if dim == nil {
			return fmt.Errorf("render: unknown dimension %q", d.Name)
		}
		values, err := dim.ValidateAndExpand(ctx, d.RequestedValue, ext)
		if err != nil {
			return fmt.Errorf("render: dimension %q: %w", d.Name, err)
		}
		if len(values) != 1 {
			return fmt.Errorf("render: dimension %q expands to %d values outside assembly mode (exactly 1 required)", d.Name, len(values))
		}
		t.Dimensions[i].CachedValue = values[0]
	}
	return nil
}

// leafFetch implements spec.md §4.3 steps (a)-(g).
func (ts *Tileset) leafFetch(ctx context.Context, t *tile.Tile, readOnly bool) error {
	entry, result, err := ts.Cache.Get(ctx, t)
	if err != nil {
		return fmt.Errorf("render: leaf fetch %v/%v/%v: cache get: %w", t.Z, t.X, t.Y, err)
	}

	if result == cache.Hit && ts.AutoExpire > 0 && ts.Source != nil && !readOnly {
		if time.Since(entry.Mtime) >= ts.AutoExpire {
			result = cache.Reload
		}
	}

	if result == cache.Hit {
		ts.applyEntry(t, entry)
		ts.computeExpires(t, entry)
		return nil
	}

	// Miss or Reload.
	if ts.Source == nil || readOnly || !isBlocking(ctx) {
		t.Nodata = true
		return nil
	}

	mt, err := tile.New(t, ts.MetaSizeX, ts.MetaSizeY, ts.MetaBuffer)
	if err != nil {
		return fmt.Errorf("render: build metatile: %w", err)
	}

	if result == cache.Reload {
		// Try the lock once without waiting: if another worker already
		// holds it, don't block — keep serving the stale tile already in
		// hand and let a future request pick up the refreshed render
		// (spec.md §4.3 step f).
		rendered, err := ts.tryRenderMetatile(ctx, mt)
		if err != nil {
			// Swallow the error on the reload path: the stale hit still
			// stands (spec.md §7 "Cache get errors during an auto-expire
			// reload path: swallowed, the stale tile is returned").
			ts.applyEntry(t, entry)
			ts.computeExpires(t, entry)
			return nil
		}
		if !rendered {
			ts.applyEntry(t, entry)
			ts.computeExpires(t, entry)
			return nil
		}
	} else if err := ts.renderMetatileLocked(ctx, mt); err != nil {
		return fmt.Errorf("render: leaf fetch %v/%v/%v: %w", t.Z, t.X, t.Y, err)
	}

	reEntry, reResult, err := ts.Cache.Get(ctx, t)
	if err != nil || reResult == cache.Miss {
		if result == cache.Reload {
			// Reload failure: spec.md §4.3 step (e) says keep the
			// previously fetched stale hit rather than failing.
			ts.applyEntry(t, entry)
			ts.computeExpires(t, entry)
			return nil
		}
		t.Nodata = true
		return nil
	}
	ts.applyEntry(t, reEntry)
	ts.computeExpires(t, reEntry)
	return nil
}

// applyEntry populates t from a cache entry, expanding the blank
// sentinel back into a synthetic solid-color image when the back-end
// stored one (spec.md §4.2 "detect_blank").
func (ts *Tileset) applyEntry(t *tile.Tile, e cache.Entry) {
	t.Mtime = e.Mtime
	if e.Blank != nil {
		t.Nodata = true
		c := *e.Blank
		t.Image = raster.Solid(ts.GridLink.Grid.TileWidth, ts.GridLink.Grid.TileHeight,
			color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]}, ts.Format)
		return
	}
	t.Image = raster.NewFromBytes(e.Data, ts.Format)
}

func (ts *Tileset) computeExpires(t *tile.Tile, e cache.Entry) {
	if ts.AutoExpire > 0 && !e.Mtime.IsZero() {
		t.Expires = time.Until(e.Mtime.Add(ts.AutoExpire))
		return
	}
	t.Expires = ts.Expires
}
