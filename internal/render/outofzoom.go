package render

import (
	"context"
	"fmt"
	"image"

	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/tile"
)

// boundaryShrinkFraction is the fraction of a pixel trimmed from every
// side of a high-zoom extent before mapping it down onto its covering
// low-zoom tiles, dodging floating-point rounding at tile boundaries
// (spec.md §4.4: "shrink by 1/1000 of a pixel on every side").
const boundaryShrinkFraction = 0.001

// getOutOfZoom implements spec.md §4.4 for requests above max_cached_zoom:
// Proxy forwards to the source directly; Reassemble synthesizes the tile
// from up to four covering lower-zoom cached tiles.
func (ts *Tileset) getOutOfZoom(ctx context.Context, t *tile.Tile) error {
	switch ts.GridLink.OutOfZoom {
	case grid.Proxy:
		if !isBlocking(ctx) {
			return fmt.Errorf("render: out-of-zoom proxy requires a blocking context")
		}
		return ts.proxyOutOfZoom(ctx, t)
	case grid.Reassemble:
		return ts.reassembleOutOfZoom(ctx, t)
	default:
		return fmt.Errorf("render: grid-link %s has no out-of-zoom strategy configured above max_cached_zoom", ts.Name)
	}
}

func (ts *Tileset) proxyOutOfZoom(ctx context.Context, t *tile.Tile) error {
	if ts.Source == nil {
		return fmt.Errorf("render: out-of-zoom proxy: tileset %s has no source", ts.Name)
	}
	ext, err := t.Extent()
	if err != nil {
		return err
	}
	m := &tile.Map{
		Tileset:    t.Tileset,
		GridLink:   t.GridLink,
		Extent:     ext,
		Width:      t.GridLink.Grid.TileWidth,
		Height:     t.GridLink.Grid.TileHeight,
		Dimensions: t.Dimensions,
	}
	img, err := ts.Source.RenderMap(ctx, m)
	if err != nil {
		return fmt.Errorf("render: out-of-zoom proxy: %w", err)
	}
	t.Image = img
	return nil
}

func (ts *Tileset) reassembleOutOfZoom(ctx context.Context, t *tile.Tile) error {
	maxCached := ts.GridLink.MaxCachedZoom
	ext, err := t.Extent()
	if err != nil {
		return err
	}
	pad := boundaryShrinkFraction * t.GridLink.Grid.Levels[t.Z].Resolution
	shrunk := ext.Grow(-pad, -pad)

	corners := []struct{ x, y float64 }{
		{shrunk.MinX, shrunk.MinY},
		{shrunk.MaxX, shrunk.MinY},
		{shrunk.MinX, shrunk.MaxY},
		{shrunk.MaxX, shrunk.MaxY},
	}

	type coveringKey struct{ x, y int }
	seen := make(map[coveringKey]bool)
	var covering []*tile.Tile
	for _, c := range corners {
		x, y, err := t.GridLink.Grid.PointToTile(maxCached, c.x, c.y)
		if err != nil {
			continue
		}
		key := coveringKey{x, y}
		if seen[key] {
			continue
		}
		seen[key] = true

		ok, err := t.GridLink.InBounds(maxCached, x, y)
		if err != nil || !ok {
			continue
		}
		covering = append(covering, &tile.Tile{
			Tileset:    t.Tileset,
			GridLink:   t.GridLink,
			Z:          maxCached,
			X:          x,
			Y:          y,
			Dimensions: t.Dimensions,
		})
	}

	if len(covering) == 0 {
		t.Nodata = true
		return nil
	}

	allNodata := true
	fetched := make([]*tile.Tile, 0, len(covering))
	for _, ct := range covering {
		if err := ts.leafFetch(ctx, ct, ts.ReadOnly); err != nil {
			return err
		}
		if !ct.Nodata {
			allNodata = false
		}
		fetched = append(fetched, ct)
	}
	if allNodata {
		t.Nodata = true
		return nil
	}

	tw, th := t.GridLink.Grid.TileWidth, t.GridLink.Grid.TileHeight
	out := raster.Transparent(tw, th)

	srcLvl := t.GridLink.Grid.Levels[maxCached]
	dstLvl := t.GridLink.Grid.Levels[t.Z]
	scaleFactor := dstLvl.Resolution / srcLvl.Resolution
	mode := raster.ResampleModeFor(scaleFactor, tw)

	for _, ct := range fetched {
		if ct.Nodata || ct.Image == nil {
			continue
		}
		srcExt, err := ct.Extent()
		if err != nil {
			continue
		}
		raw, err := ct.Image.Decode()
		if err != nil {
			continue
		}
		scaled := raw
		if scaleFactor != 1 {
			scaledW := int(srcExt.Width() / dstLvl.Resolution)
			scaledH := int(srcExt.Height() / dstLvl.Resolution)
			if scaledW > 0 && scaledH > 0 {
				scaled = raster.Resample(raw, scaledW, scaledH, mode)
			}
		}
		offX := int((srcExt.MinX - ext.MinX) / dstLvl.Resolution)
		offY := int((ext.MaxY - srcExt.MaxY) / dstLvl.Resolution)
		pasteClipped(out, scaled, offX, offY)
	}

	t.Image = raster.NewFromRGBA(out, ts.Format)
	return nil
}

// pasteClipped copies src into dst at (x, y), clipping to dst's bounds
// instead of panicking when the covering tile only partially overlaps.
func pasteClipped(dst *image.RGBA, src *image.RGBA, x, y int) {
	db := dst.Bounds()
	sb := src.Bounds()
	for row := 0; row < sb.Dy(); row++ {
		dy := y + row
		if dy < db.Min.Y || dy >= db.Max.Y {
			continue
		}
		for col := 0; col < sb.Dx(); col++ {
			dx := x + col
			if dx < db.Min.X || dx >= db.Max.X {
				continue
			}
			dst.SetRGBA(dx, dy, src.RGBAAt(sb.Min.X+col, sb.Min.Y+row))
		}
	}
}
