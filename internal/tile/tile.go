// Package tile holds the request-scoped addressable units — Tile,
// MetaTile, Map, FeatureInfo — from spec.md §3.
package tile

import (
	"strconv"
	"time"

	"github.com/arx-os/mapcache/internal/extent"
	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/raster"
)

// RequestedDimension pairs a dimension with the client-supplied value and
// the single resolved sub-value used to build a cache key (spec.md §3).
type RequestedDimension struct {
	Name            string
	RequestedValue  string
	CachedValue     string
}

// Tile is a (tileset, grid-link, z, x, y, dimensions) addressed unit.
type Tile struct {
	Tileset    string
	GridLink   *grid.GridLink
	Z, X, Y    int
	Dimensions []RequestedDimension

	Image         *raster.Image
	Mtime         time.Time
	Expires       time.Duration
	Nodata        bool
	AllowRedirect bool
}

// Extent returns the tile's map extent.
func (t *Tile) Extent() (extent.Extent, error) {
	return t.GridLink.Grid.TileExtent(t.Z, t.X, t.Y)
}

// CachedDimensionValues returns the resolved dimension values in the
// tile's declared order, used to build a stable cache key.
func (t *Tile) CachedDimensionValues() []string {
	out := make([]string, len(t.Dimensions))
	for i, d := range t.Dimensions {
		out[i] = d.CachedValue
	}
	return out
}

// MetaTile is a metasize_x x metasize_y block of adjacent tiles rendered
// as one source call (spec.md §3, §4.3).
type MetaTile struct {
	Tileset   string
	GridLink  *grid.GridLink
	Z         int
	MtX, MtY  int
	SizeX     int // metasize_x', clamped to the grid at this edge
	SizeY     int
	Buffer    int // metabuffer, in pixels
	Children  []*Tile
	MapExtent extent.Extent
}

// New builds the MetaTile covering tile t, clamping the shape at grid
// edges (spec.md §4.3: "edge metatiles never exceed the grid").
func New(t *Tile, metaSizeX, metaSizeY, buffer int) (*MetaTile, error) {
	lvl := t.GridLink.Grid.Levels[t.Z]

	mtX := floorDiv(t.X, metaSizeX)
	mtY := floorDiv(t.Y, metaSizeY)

	sizeX := metaSizeX
	if remaining := lvl.MaxX - mtX*metaSizeX; remaining < sizeX {
		sizeX = remaining
	}
	sizeY := metaSizeY
	if remaining := lvl.MaxY - mtY*metaSizeY; remaining < sizeY {
		sizeY = remaining
	}

	mt := &MetaTile{
		Tileset:  t.Tileset,
		GridLink: t.GridLink,
		Z:        t.Z,
		MtX:      mtX,
		MtY:      mtY,
		SizeX:    sizeX,
		SizeY:    sizeY,
		Buffer:   buffer,
	}

	startX := mtX * metaSizeX
	startY := mtY * metaSizeY
	var childExtents []extent.Extent
	for dy := 0; dy < sizeY; dy++ {
		for dx := 0; dx < sizeX; dx++ {
			x, y := startX+dx, startY+dy
			child := &Tile{
				Tileset:    t.Tileset,
				GridLink:   t.GridLink,
				Z:          t.Z,
				X:          x,
				Y:          y,
				Dimensions: t.Dimensions,
			}
			ext, err := t.GridLink.Grid.TileExtent(t.Z, x, y)
			if err != nil {
				return nil, err
			}
			childExtents = append(childExtents, ext)
			mt.Children = append(mt.Children, child)
		}
	}
	bufW := float64(buffer) * lvl.Resolution
	bufH := float64(buffer) * lvl.Resolution
	mt.MapExtent = extent.Union(childExtents...).Grow(bufW, bufH)
	return mt, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// PixelSize returns the metatile's rendered pixel dimensions.
func (mt *MetaTile) PixelSize() (w, h int) {
	tw, th := mt.GridLink.Grid.TileWidth, mt.GridLink.Grid.TileHeight
	return mt.SizeX*tw + 2*mt.Buffer, mt.SizeY*th + 2*mt.Buffer
}

// NTiles returns the number of child tiles.
func (mt *MetaTile) NTiles() int { return len(mt.Children) }

// ResourceKey builds the locking key from spec.md §4.3:
// "<z>-<mt_y>-<mt_x>-<tileset>[-<grid>][-<dim1_val>][-<dim2_val>]…"
func (mt *MetaTile) ResourceKey() string {
	key := sprintfKey(mt.Z, mt.MtY, mt.MtX, mt.Tileset)
	if mt.GridLink != nil && mt.GridLink.Grid != nil {
		key += "-" + sanitizeDim(mt.GridLink.Grid.Name)
	}
	if len(mt.Children) > 0 {
		for _, d := range mt.Children[0].Dimensions {
			key += "-" + sanitizeDim(d.CachedValue)
		}
	}
	return key
}

func sprintfKey(z, mtY, mtX int, tileset string) string {
	return strconv.Itoa(z) + "-" + strconv.Itoa(mtY) + "-" + strconv.Itoa(mtX) + "-" + tileset
}

func sanitizeDim(v string) string {
	out := []byte(v)
	for i, c := range out {
		if c == '/' {
			out[i] = '#'
		}
	}
	return string(out)
}
