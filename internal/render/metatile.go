package render

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/tile"
)

// renderAndSplit renders the metatile's map extent through the tileset's
// source, crops out each child tile (offset by the metabuffer), detects
// blank tiles, overlays the watermark, and encodes every child in the
// tileset format — without storing (spec.md §4.3(d)).
func (ts *Tileset) renderAndSplit(ctx context.Context, mt *tile.MetaTile) error {
	if ts.Source == nil {
		return fmt.Errorf("render: tileset %s has no source configured", ts.Name)
	}

	w, h := mt.PixelSize()
	m := &tile.Map{
		Tileset:  mt.Tileset,
		GridLink: mt.GridLink,
		Extent:   mt.MapExtent,
		Width:    w,
		Height:   h,
	}
	if len(mt.Children) > 0 {
		m.Dimensions = mt.Children[0].Dimensions
	}

	rendered, err := ts.Source.RenderMap(ctx, m)
	if err != nil {
		return fmt.Errorf("render: metatile %s: source render: %w", mt.ResourceKey(), err)
	}
	full, err := rendered.Decode()
	if err != nil {
		return fmt.Errorf("render: metatile %s: decode source image: %w", mt.ResourceKey(), err)
	}

	tw, th := mt.GridLink.Grid.TileWidth, mt.GridLink.Grid.TileHeight
	for i, child := range mt.Children {
		col := i % mt.SizeX
		// tile.New lists children row-major in increasing tile-y. Pixel
		// rows always run top-to-bottom; whether increasing tile-y moves
		// north (up) or south (down) in map space depends on the grid's
		// origin (mirrors pixelOffsetInBox in mapassembly.go). BottomLeft:
		// y increases northward, so row 0 is the metatile's bottom edge
		// and must be inverted to a pixel row. TopLeft: y already
		// increases southward, matching pixel-row order directly.
		var rowFromTop int
		switch mt.GridLink.Grid.Origin {
		case grid.OriginTopLeft:
			rowFromTop = i / mt.SizeX
		default:
			rowFromTop = mt.SizeY - 1 - i/mt.SizeX
		}

		ox := ts.MetaBuffer + col*tw
		oy := ts.MetaBuffer + rowFromTop*th
		sub := image.NewRGBA(image.Rect(0, 0, tw, th))
		raster.PasteAt(sub, cropRGBA(full, ox, oy, tw, th), 0, 0)

		img := raster.NewFromRGBA(sub, ts.Format)
		blank, _ := img.IsBlank()
		child.Nodata = blank
		if ts.Watermark != nil {
			wmRaw, err := ts.Watermark.Decode()
			if err == nil {
				raster.Merge(sub, wmRaw)
			}
		}
		if _, err := img.Encode(); err != nil {
			return fmt.Errorf("render: metatile %s: encode child %d: %w", mt.ResourceKey(), i, err)
		}
		child.Image = img
	}
	return nil
}

// cropRGBA copies the (w, h) sub-rectangle of src starting at (x, y).
func cropRGBA(src *image.RGBA, x, y, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			out.SetRGBA(col, row, src.RGBAAt(x+col, y+row))
		}
	}
	return out
}

// storeChildren writes every rendered child tile via MultiSet, with the
// encoded bytes wrapped in the cache-entry blank sentinel where the
// back-end supports it (spec.md §4.3(d), §4.2 "detect_blank").
func (ts *Tileset) storeChildren(ctx context.Context, mt *tile.MetaTile) error {
	entries := make(map[*tile.Tile]cache.Entry, len(mt.Children))
	for _, child := range mt.Children {
		if child.Image == nil {
			continue
		}
		e := cache.Entry{Data: child.Image.Encoded, Mtime: time.Now()}
		if blank, c := child.Image.IsBlank(); blank {
			arr := [4]uint8{c.R, c.G, c.B, c.A}
			e.Blank = &arr
		}
		entries[child] = e
		child.Mtime = e.Mtime
	}
	if len(entries) == 0 {
		return nil
	}
	if err := ts.Cache.MultiSet(ctx, entries); err != nil {
		return fmt.Errorf("render: metatile %s: store: %w", mt.ResourceKey(), err)
	}
	return nil
}
