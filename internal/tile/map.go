package tile

import (
	"github.com/arx-os/mapcache/internal/extent"
	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/raster"
)

// Map is an arbitrary (tileset, grid-link, extent, width, height,
// dimensions) request — WMS full-image mode, feature-info, and the
// source render_map input (spec.md §3).
type Map struct {
	Tileset    string
	GridLink   *grid.GridLink
	Extent     extent.Extent
	Width      int
	Height     int
	Dimensions []RequestedDimension
	Image      *raster.Image
}

// FeatureInfo is a Map plus pixel coordinates and an info format
// (spec.md §3).
type FeatureInfo struct {
	Map        Map
	I, J       int
	InfoFormat string
}
