package grid

import (
	"fmt"
	"sync"

	"github.com/arx-os/mapcache/internal/extent"
)

// OutOfZoomStrategy selects what happens for requests above a grid-link's
// MaxCachedZoom (spec.md §4.4).
type OutOfZoomStrategy int

const (
	NotConfigured OutOfZoomStrategy = iota
	Reassemble
	Proxy
)

// Rule overrides visibility/readonly behavior for one (grid-link, level)
// pair (spec.md §3).
type Rule struct {
	VisibleExtents []extent.Extent
	HiddenColor    [4]uint8 // RGBA
	ReadOnly       bool
}

// Visible reports whether tile (x,y) at this rule's level falls inside any
// of the rule's visible extents. A rule with no visible extents hides
// every tile at its level.
func (r *Rule) Visible(tileExtent extent.Extent) bool {
	for _, v := range r.VisibleExtents {
		if tileExtent.Intersects(v) {
			return true
		}
	}
	return false
}

// GridLink is one tileset's use of one grid (spec.md §3).
type GridLink struct {
	Grid              *Grid
	RestrictedExtent  extent.Extent
	HasRestriction    bool
	Tolerance         int // tiles; extends limits outward
	MinZ, MaxZ        int // active [minz, maxz) window
	MaxCachedZoom     int
	HasMaxCachedZoom  bool
	OutOfZoom         OutOfZoomStrategy
	IntermediateGrids []*GridLink
	Rules             map[int]*Rule // by level

	limitsMu    sync.RWMutex
	limitsCache map[int]extent.IntExtent
}

// limitEpsilon dodges rounding-boundary off-by-one tiles when computing
// limits from a restricted extent (spec.md §4.1), expressed as a fraction
// of one pixel.
const limitEpsilon = 1e-7

// Limits computes the integer tile-index extent at level z implied by the
// grid-link's restricted extent (or the full grid extent if unrestricted),
// widened by Tolerance tiles and clamped to [0, level.max_*] (spec.md §4.1,
// "Limits clamping" invariant, spec.md §8).
func (gl *GridLink) Limits(z int) (extent.IntExtent, error) {
	gl.limitsMu.RLock()
	v, ok := gl.limitsCache[z]
	gl.limitsMu.RUnlock()
	if ok {
		return v, nil
	}
	if z < 0 || z >= len(gl.Grid.Levels) {
		return extent.IntExtent{}, fmt.Errorf("gridlink: level %d out of range", z)
	}
	lvl := gl.Grid.Levels[z]

	bound := gl.Grid.Extent
	if gl.HasRestriction {
		bound = gl.RestrictedExtent.Clamp(gl.Grid.Extent)
	}

	tw := lvl.Resolution * float64(gl.Grid.TileWidth)
	th := lvl.Resolution * float64(gl.Grid.TileHeight)
	eps := limitEpsilon * lvl.Resolution

	var minX, minY, maxX, maxY int
	switch gl.Grid.Origin {
	case OriginBottomLeft:
		minX = int((bound.MinX - gl.Grid.Extent.MinX + eps) / tw)
		minY = int((bound.MinY - gl.Grid.Extent.MinY + eps) / th)
		maxX = int((bound.MaxX-gl.Grid.Extent.MinX-eps)/tw) + 1
		maxY = int((bound.MaxY-gl.Grid.Extent.MinY-eps)/th) + 1
	case OriginTopLeft:
		minX = int((bound.MinX - gl.Grid.Extent.MinX + eps) / tw)
		minY = int((gl.Grid.Extent.MaxY-bound.MaxY+eps)/th)
		maxX = int((bound.MaxX-gl.Grid.Extent.MinX-eps)/tw) + 1
		maxY = int((gl.Grid.Extent.MaxY-bound.MinY-eps)/th) + 1
	default:
		return extent.IntExtent{}, fmt.Errorf("gridlink: origin %v not implemented", gl.Grid.Origin)
	}

	out := extent.IntExtent{
		MinX: minX - gl.Tolerance,
		MinY: minY - gl.Tolerance,
		MaxX: maxX + gl.Tolerance,
		MaxY: maxY + gl.Tolerance,
	}.Clamp(lvl.MaxX, lvl.MaxY)

	gl.limitsMu.Lock()
	if gl.limitsCache == nil {
		gl.limitsCache = make(map[int]extent.IntExtent)
	}
	gl.limitsCache[z] = out
	gl.limitsMu.Unlock()
	return out, nil
}

// InBounds reports whether tile (x,y,z) is within the grid-link's active
// zoom window and computed limits.
func (gl *GridLink) InBounds(z, x, y int) (bool, error) {
	if z < gl.MinZ || z >= gl.MaxZ {
		return false, nil
	}
	limits, err := gl.Limits(z)
	if err != nil {
		return false, err
	}
	return x >= limits.MinX && x < limits.MaxX && y >= limits.MinY && y < limits.MaxY, nil
}

// RuleFor returns the configured Rule for level z, if any.
func (gl *GridLink) RuleFor(z int) (*Rule, bool) {
	if gl.Rules == nil {
		return nil, false
	}
	r, ok := gl.Rules[z]
	return r, ok
}
