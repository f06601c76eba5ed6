package render

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/arx-os/mapcache/internal/extent"
	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/tile"
)

// resampleThreshold is how close a scale factor must be to 1 to use
// nearest-neighbor regardless of the configured resample mode
// (spec.md §4.5 step 6).
const resampleThreshold = 1e-4

// AssembleMap implements the WMS full-image path of spec.md §4.5: pick a
// level, gather covering tiles, paste them into a working image, and
// resample into the client's requested extent and size.
func (ts *Tileset) AssembleMap(ctx context.Context, m *tile.Map) error {
	links := append([]*grid.GridLink{ts.GridLink}, ts.GridLink.IntermediateGrids...)

	best := pickBestLink(links, m.Extent, m.Width, m.Height)
	z := best.link.Grid.BestLevelResolution(m.Extent, m.Width, m.Height)
	if best.link.OutOfZoom == grid.Reassemble && best.link.HasMaxCachedZoom && z > best.link.MaxCachedZoom {
		z = best.link.MaxCachedZoom
	}

	limits, err := best.link.Limits(z)
	if err != nil {
		return fmt.Errorf("render: map assembly: limits: %w", err)
	}

	lvl := best.link.Grid.Levels[z]
	tw, th := best.link.Grid.TileWidth, best.link.Grid.TileHeight

	minX, minY, err := tileBoxCorner(best.link.Grid, z, m.Extent.MinX, m.Extent.MinY)
	if err != nil {
		return err
	}
	maxX, maxY, err := tileBoxCorner(best.link.Grid, z, m.Extent.MaxX, m.Extent.MaxY)
	if err != nil {
		return err
	}
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	minX = clampInt(minX, limits.MinX, limits.MaxX-1)
	maxX = clampInt(maxX, limits.MinX, limits.MaxX-1)
	minY = clampInt(minY, limits.MinY, limits.MaxY-1)
	maxY = clampInt(maxY, limits.MinY, limits.MaxY-1)

	type covered struct {
		x, y int
		t    *tile.Tile
	}
	var fetched []covered
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			ok, err := best.link.InBounds(z, x, y)
			if err != nil || !ok {
				continue
			}
			ct := &tile.Tile{
				Tileset:    m.Tileset,
				GridLink:   best.link,
				Z:          z,
				X:          x,
				Y:          y,
				Dimensions: m.Dimensions,
			}
			if err := ts.Get(ctx, ct); err != nil {
				continue
			}
			if ct.Nodata && ct.Image == nil {
				continue
			}
			fetched = append(fetched, covered{x, y, ct})
		}
	}

	if len(fetched) == 0 {
		m.Image = raster.NewFromRGBA(raster.Transparent(m.Width, m.Height), ts.Format)
		return nil
	}

	srcW := (maxX - minX + 1) * tw
	srcH := (maxY - minY + 1) * th
	working := raster.Transparent(srcW, srcH)

	for _, c := range fetched {
		if c.t.Image == nil {
			continue
		}
		raw, err := c.t.Image.Decode()
		if err != nil {
			continue
		}
		px, py := pixelOffsetInBox(best.link.Grid, z, c.x, c.y, minX, minY, maxY, tw, th)
		raster.PasteAt(working, raw, px, py)
	}

	boxExtent, err := tileBoxExtent(best.link.Grid, z, minX, minY, maxX, maxY)
	if err != nil {
		return err
	}
	dstMinX := int((m.Extent.MinX - boxExtent.MinX) / lvl.Resolution)
	dstMinY := int((boxExtent.MaxY - m.Extent.MaxY) / lvl.Resolution)

	hf := lvl.Resolution / (m.Extent.Width() / float64(m.Width))
	vf := lvl.Resolution / (m.Extent.Height() / float64(m.Height))

	mode := ts.ResampleMode
	if math.Abs(hf-1) < resampleThreshold && math.Abs(vf-1) < resampleThreshold {
		mode = raster.Nearest
	}

	cropped := cropWindow(working, dstMinX, dstMinY, int(float64(m.Width)/hf), int(float64(m.Height)/vf))
	scaled := raster.Resample(cropped, m.Width, m.Height, mode)

	m.Image = raster.NewFromRGBA(scaled, ts.Format)
	return nil
}

type linkChoice struct {
	link *grid.GridLink
}

// pickBestLink chooses the grid-link whose level resolution is closest
// to the requested one, across the primary link and its intermediates
// (spec.md §4.5 step 1).
func pickBestLink(links []*grid.GridLink, req extent.Extent, width, height int) linkChoice {
	best := links[0]
	bestDiff := math.MaxFloat64
	wantRes := math.Max(req.Width()/float64(width), req.Height()/float64(height))
	for _, l := range links {
		z := l.Grid.BestLevelResolution(req, width, height)
		if z < 0 || z >= len(l.Grid.Levels) {
			continue
		}
		diff := math.Abs(l.Grid.Levels[z].Resolution - wantRes)
		if diff < bestDiff {
			bestDiff = diff
			best = l
		}
	}
	return linkChoice{link: best}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// tileBoxCorner returns the tile index containing point (x, y) at level z.
func tileBoxCorner(g *grid.Grid, z int, x, y float64) (int, int, error) {
	return g.PointToTile(z, x, y)
}

func tileBoxExtent(g *grid.Grid, z, minX, minY, maxX, maxY int) (extent.Extent, error) {
	lo, err := g.TileExtent(z, minX, minY)
	if err != nil {
		return extent.Extent{}, err
	}
	hi, err := g.TileExtent(z, maxX, maxY)
	if err != nil {
		return extent.Extent{}, err
	}
	return extent.Union(lo, hi), nil
}

// pixelOffsetInBox returns the top-left pixel offset of tile (x,y) within
// the covering-box working image, accounting for the grid's vertical
// origin (image rows run top-to-bottom regardless of the grid's own
// bottom-up or top-down tile numbering).
func pixelOffsetInBox(g *grid.Grid, z, x, y, minX, minY, maxY, tw, th int) (int, int) {
	px := (x - minX) * tw
	var py int
	switch g.Origin {
	case grid.OriginBottomLeft:
		py = (maxY - y) * th
	case grid.OriginTopLeft:
		py = (y - minY) * th
	}
	return px, py
}

// cropWindow extracts the (w, h) window of src starting at (x, y),
// clamping to src's bounds and padding with transparency where the
// window runs outside them.
func cropWindow(src *image.RGBA, x, y, w, h int) *image.RGBA {
	out := raster.Transparent(w, h)
	sb := src.Bounds()
	for row := 0; row < h; row++ {
		sy := y + row
		if sy < sb.Min.Y || sy >= sb.Max.Y {
			continue
		}
		for col := 0; col < w; col++ {
			sx := x + col
			if sx < sb.Min.X || sx >= sb.Max.X {
				continue
			}
			out.SetRGBA(col, row, src.RGBAAt(sx, sy))
		}
	}
	return out
}
