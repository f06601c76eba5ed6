// Package extent implements the floating-point and integer bounding-box
// types shared by grids, tilesets, and the assembly path.
package extent

import "math"

// Extent is a (min_x, min_y, max_x, max_y) bounding box in map units.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// IntExtent is the integer tile-index variant produced by grid-link limits.
type IntExtent struct {
	MinX, MinY, MaxX, MaxY int
}

// Valid reports whether the extent is non-empty.
func (e Extent) Valid() bool {
	return e.MaxX > e.MinX && e.MaxY > e.MinY
}

// Width returns max_x - min_x.
func (e Extent) Width() float64 { return e.MaxX - e.MinX }

// Height returns max_y - min_y.
func (e Extent) Height() float64 { return e.MaxY - e.MinY }

// Shrink contracts the extent by fraction of its size on every side.
func (e Extent) Shrink(fraction float64) Extent {
	dx := e.Width() * fraction
	dy := e.Height() * fraction
	return Extent{e.MinX + dx, e.MinY + dy, e.MaxX - dx, e.MaxY - dy}
}

// Grow enlarges the extent by dx/dy on every side (metabuffer application).
func (e Extent) Grow(dx, dy float64) Extent {
	return Extent{e.MinX - dx, e.MinY - dy, e.MaxX + dx, e.MaxY + dy}
}

// Intersects reports whether two extents overlap.
func (e Extent) Intersects(o Extent) bool {
	return e.MinX < o.MaxX && e.MaxX > o.MinX && e.MinY < o.MaxY && e.MaxY > o.MinY
}

// Union returns the smallest extent covering every extent passed in; with
// no arguments it returns the zero Extent. Zero-value arguments are
// included like any other.
func Union(extents ...Extent) Extent {
	var out Extent
	first := true
	for _, e := range extents {
		if first {
			out = e
			first = false
			continue
		}
		out.MinX = math.Min(out.MinX, e.MinX)
		out.MinY = math.Min(out.MinY, e.MinY)
		out.MaxX = math.Max(out.MaxX, e.MaxX)
		out.MaxY = math.Max(out.MaxY, e.MaxY)
	}
	return out
}

// Clamp restricts e to within bound, returning the intersection. The
// caller must check Valid() on the result.
func (e Extent) Clamp(bound Extent) Extent {
	return Extent{
		MinX: math.Max(e.MinX, bound.MinX),
		MinY: math.Max(e.MinY, bound.MinY),
		MaxX: math.Min(e.MaxX, bound.MaxX),
		MaxY: math.Min(e.MaxY, bound.MaxY),
	}
}

// Valid reports whether an integer extent is non-empty and ordered.
func (e IntExtent) Valid() bool {
	return e.MaxX >= e.MinX && e.MaxY >= e.MinY
}

// Clamp restricts an integer extent to [0, maxX] x [0, maxY].
func (e IntExtent) Clamp(maxX, maxY int) IntExtent {
	out := e
	if out.MinX < 0 {
		out.MinX = 0
	}
	if out.MinY < 0 {
		out.MinY = 0
	}
	if out.MaxX > maxX {
		out.MaxX = maxX
	}
	if out.MaxY > maxY {
		out.MaxY = maxY
	}
	return out
}
