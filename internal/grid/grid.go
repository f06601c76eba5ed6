// Package grid implements the zoom-level pyramid, tile/extent math, and
// grid-link limit computation described in spec.md §3 and §4.1.
package grid

import (
	"fmt"
	"math"

	"github.com/arx-os/mapcache/internal/extent"
)

// Unit is a grid's projection unit.
type Unit int

const (
	UnitMeters Unit = iota
	UnitDegrees
	UnitFeet
)

// Origin identifies the pixel (0,0) corner of a grid's tiles.
//
// TopRight and BottomRight are reserved: the original C implementation
// never implements them (spec.md §3), and neither do we.
type Origin int

const (
	OriginBottomLeft Origin = iota
	OriginTopLeft
	OriginBottomRight // reserved, not implemented
	OriginTopRight    // reserved, not implemented
)

// Level is one resolution step of a grid's pyramid.
type Level struct {
	// Resolution is map units per pixel at this level.
	Resolution float64
	// MaxX, MaxY are the tile counts that fit the grid's full extent at
	// this resolution.
	MaxX, MaxY int
}

// Grid is a named pyramid of zoom levels in one spatial reference.
type Grid struct {
	Name       string
	SRS        string
	Aliases    []string
	Unit       Unit
	Extent     extent.Extent
	TileWidth  int
	TileHeight int
	Origin     Origin
	Levels     []Level
}

// Validate checks the invariants from spec.md §3: strictly decreasing
// resolution, max_* >= 1, non-empty extent.
func (g *Grid) Validate() error {
	if !g.Extent.Valid() {
		return fmt.Errorf("grid %s: extent is empty", g.Name)
	}
	if g.TileWidth <= 0 || g.TileHeight <= 0 {
		return fmt.Errorf("grid %s: tile size must be positive", g.Name)
	}
	if len(g.Levels) == 0 {
		return fmt.Errorf("grid %s: no levels configured", g.Name)
	}
	for i, lvl := range g.Levels {
		if lvl.MaxX < 1 || lvl.MaxY < 1 {
			return fmt.Errorf("grid %s: level %d has max_* < 1", g.Name, i)
		}
		if i > 0 && lvl.Resolution >= g.Levels[i-1].Resolution {
			return fmt.Errorf("grid %s: level %d resolution does not strictly decrease", g.Name, i)
		}
	}
	if g.Origin == OriginBottomRight || g.Origin == OriginTopRight {
		return fmt.Errorf("grid %s: origin %v is reserved and not implemented", g.Name, g.Origin)
	}
	return nil
}

// TileExtent derives the map extent covered by tile (x,y) at level z. The
// mapping is total, deterministic, and computed directly from the grid's
// origin/resolution/tile size rather than by stepping level-to-level, so
// it carries no floating point accumulation across levels (spec.md §4.1).
func (g *Grid) TileExtent(z, x, y int) (extent.Extent, error) {
	if z < 0 || z >= len(g.Levels) {
		return extent.Extent{}, fmt.Errorf("grid %s: level %d out of range", g.Name, z)
	}
	lvl := g.Levels[z]
	tw := lvl.Resolution * float64(g.TileWidth)
	th := lvl.Resolution * float64(g.TileHeight)

	var minX, minY float64
	switch g.Origin {
	case OriginBottomLeft:
		minX = g.Extent.MinX + float64(x)*tw
		minY = g.Extent.MinY + float64(y)*th
	case OriginTopLeft:
		minX = g.Extent.MinX + float64(x)*tw
		minY = g.Extent.MaxY - float64(y+1)*th
	default:
		return extent.Extent{}, fmt.Errorf("grid %s: origin %v not implemented", g.Name, g.Origin)
	}
	return extent.Extent{MinX: minX, MinY: minY, MaxX: minX + tw, MaxY: minY + th}, nil
}

// PointToTile maps a map-unit point to the tile index that contains it at
// level z, without requiring the point to land exactly on a tile
// boundary — used by out-of-zoom reassembly to locate the covering
// lower-zoom tiles under a shrunk high-zoom extent (spec.md §4.4).
func (g *Grid) PointToTile(z int, x, y float64) (int, int, error) {
	if z < 0 || z >= len(g.Levels) {
		return 0, 0, fmt.Errorf("grid %s: level %d out of range", g.Name, z)
	}
	lvl := g.Levels[z]
	tw := lvl.Resolution * float64(g.TileWidth)
	th := lvl.Resolution * float64(g.TileHeight)

	switch g.Origin {
	case OriginBottomLeft:
		return int(math.Floor((x - g.Extent.MinX) / tw)), int(math.Floor((y - g.Extent.MinY) / th)), nil
	case OriginTopLeft:
		return int(math.Floor((x - g.Extent.MinX) / tw)), int(math.Floor((g.Extent.MaxY - y) / th)), nil
	default:
		return 0, 0, fmt.Errorf("grid %s: origin %v not implemented", g.Name, g.Origin)
	}
}

// epsilonPixels is a fraction of a pixel for dodging rounding at tile
// boundaries (spec.md §4.1). Nothing in this package references it:
// Limits applies limitEpsilon and GetCell a half-pixel alignment tolerance.
const epsilonPixels = 1e-7

// GetCell maps an extent/width/height request to the best matching level
// and integer tile cell. It returns ok=false ("misaligned") when the
// extent does not correspond to exactly one tile at the chosen level.
func (g *Grid) GetCell(req extent.Extent, width, height int) (z, x, y int, ok bool) {
	z = g.bestLevel(req, width, height)
	if z < 0 {
		return 0, 0, 0, false
	}
	lvl := g.Levels[z]
	if width != g.TileWidth || height != g.TileHeight {
		return z, 0, 0, false
	}

	tw := lvl.Resolution * float64(g.TileWidth)
	th := lvl.Resolution * float64(g.TileHeight)
	tol := lvl.Resolution / math.Max(float64(g.TileWidth), float64(g.TileHeight)) / 2

	var fx, fy float64
	switch g.Origin {
	case OriginBottomLeft:
		fx = (req.MinX - g.Extent.MinX) / tw
		fy = (req.MinY - g.Extent.MinY) / th
	case OriginTopLeft:
		fx = (req.MinX - g.Extent.MinX) / tw
		fy = (g.Extent.MaxY - req.MaxY) / th
	default:
		return z, 0, 0, false
	}

	rx := math.Round(fx)
	ry := math.Round(fy)
	if math.Abs(fx-rx) > tol/lvl.Resolution || math.Abs(fy-ry) > tol/lvl.Resolution {
		return z, 0, 0, false
	}
	x = int(rx)
	y = int(ry)
	if x < 0 || y < 0 || x >= lvl.MaxX || y >= lvl.MaxY {
		return z, x, y, false
	}
	return z, x, y, true
}

// bestLevel picks the level whose resolution is closest to the request's
// implied resolution (spec.md §4.1); no tolerance is applied to the
// choice. Returns -1 if the grid has no levels or the requested pixel
// size is not positive.
func (g *Grid) bestLevel(req extent.Extent, width, height int) int {
	if len(g.Levels) == 0 || width <= 0 || height <= 0 {
		return -1
	}
	target := math.Max(req.Width()/float64(width), req.Height()/float64(height))

	best := 0
	bestDiff := math.MaxFloat64
	for i, lvl := range g.Levels {
		diff := math.Abs(lvl.Resolution - target)
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return best
}

// BestLevelResolution is the public form of bestLevel used by map
// assembly's level-selection step (spec.md §4.5 step 1).
func (g *Grid) BestLevelResolution(req extent.Extent, width, height int) int {
	return g.bestLevel(req, width, height)
}
