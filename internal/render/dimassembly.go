package render

import (
	"context"
	"fmt"
	"time"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/tile"
)

// getWithDimensionAssembly implements spec.md §4.6: expand each requested
// dimension value into its sub-values, form the Cartesian product of
// subtiles, fetch and merge them in reverse order, and optionally cache
// the assembled result.
func (ts *Tileset) getWithDimensionAssembly(ctx context.Context, t *tile.Tile) error {
	if ts.StoreDimensionAssemblies {
		entry, result, err := ts.Cache.Get(ctx, t)
		if err == nil && result == cache.Hit {
			ts.applyEntry(t, entry)
			ts.computeExpires(t, entry)
			return nil
		}
	}

	ext, err := t.Extent()
	if err != nil {
		return fmt.Errorf("render: dimension assembly: tile extent: %w", err)
	}

	expanded := make([][]string, len(t.Dimensions))
	for i, d := range t.Dimensions {
		dim := ts.dimensionByName(d.Name)
		if dim == nil {
			return fmt.Errorf("render: dimension assembly: unknown dimension %q", d.Name)
		}
		values, err := dim.ValidateAndExpand(ctx, d.RequestedValue, ext)
		if err != nil {
			return fmt.Errorf("render: dimension assembly: %q: %w", d.Name, err)
		}
		if len(values) == 0 {
			t.Nodata = true
			if ts.StoreDimensionAssemblies {
				_ = ts.Cache.Set(ctx, t, cache.Entry{Mtime: time.Now()})
			}
			return nil
		}
		expanded[i] = values
	}

	subtiles := cartesianProduct(t, expanded)
	if ts.MaxSubdimensions > 0 && len(subtiles) > ts.MaxSubdimensions {
		return fmt.Errorf("render: dimension assembly: %d sub-dimension combinations exceeds the configured cap of %d",
			len(subtiles), ts.MaxSubdimensions)
	}

	readOnly := ts.SubdimensionReadOnly || ts.Source == nil

	var accumulator *raster.Image
	anyUsable := false
	for i := len(subtiles) - 1; i >= 0; i-- {
		sub := subtiles[i]
		if err := ts.leafFetch(ctx, sub, readOnly); err != nil {
			return fmt.Errorf("render: dimension assembly: subtile fetch: %w", err)
		}
		if sub.Nodata || sub.Image == nil {
			continue
		}
		anyUsable = true
		if accumulator == nil {
			accumulator = sub.Image
		} else {
			accRaw, err := accumulator.Decode()
			if err != nil {
				continue
			}
			subRaw, err := sub.Image.Decode()
			if err != nil {
				continue
			}
			raster.Merge(accRaw, subRaw)
		}
		if accumulator.Opaque() {
			break
		}
	}

	if !anyUsable || accumulator == nil {
		t.Nodata = true
		return nil
	}

	t.Image = accumulator
	t.Nodata = false

	if ts.StoreDimensionAssemblies && cartesianNontrivial(expanded) {
		if _, err := t.Image.Encode(); err == nil {
			_ = ts.Cache.Set(ctx, t, cache.Entry{Data: t.Image.Encoded, Mtime: time.Now()})
		}
	}
	return nil
}

// cartesianProduct builds one subtile per combination of sub-dimension
// values, preserving t's declared dimension order.
func cartesianProduct(t *tile.Tile, expanded [][]string) []*tile.Tile {
	if len(expanded) == 0 {
		return []*tile.Tile{t}
	}
	indices := make([]int, len(expanded))
	var out []*tile.Tile
	for {
		dims := make([]tile.RequestedDimension, len(t.Dimensions))
		for i, d := range t.Dimensions {
			dims[i] = tile.RequestedDimension{
				Name:           d.Name,
				RequestedValue: d.RequestedValue,
				CachedValue:    expanded[i][indices[i]],
			}
		}
		out = append(out, &tile.Tile{
			Tileset:    t.Tileset,
			GridLink:   t.GridLink,
			Z:          t.Z,
			X:          t.X,
			Y:          t.Y,
			Dimensions: dims,
		})

		pos := len(expanded) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(expanded[pos]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out
}

// cartesianNontrivial reports whether the expansion produced more than
// one combination, meaning the assembled result's key differs from any
// single subtile's key (spec.md §4.6 step 6).
func cartesianNontrivial(expanded [][]string) bool {
	total := 1
	for _, values := range expanded {
		total *= len(values)
	}
	return total != 1
}
