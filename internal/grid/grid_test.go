package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/mapcache/internal/extent"
)

func webMercatorish() *Grid {
	return &Grid{
		Name:       "GoogleMapsCompatible",
		Extent:     extent.Extent{MinX: -180, MinY: -180, MaxX: 180, MaxY: 180},
		TileWidth:  256,
		TileHeight: 256,
		Origin:     OriginBottomLeft,
		Levels: []Level{
			{Resolution: 360.0 / 256, MaxX: 1, MaxY: 1},
			{Resolution: 360.0 / 512, MaxX: 2, MaxY: 2},
			{Resolution: 360.0 / 1024, MaxX: 4, MaxY: 4},
		},
	}
}

func TestValidate(t *testing.T) {
	g := webMercatorish()
	require.NoError(t, g.Validate())
}

func TestValidateRejectsEmptyExtent(t *testing.T) {
	g := webMercatorish()
	g.Extent = extent.Extent{MinX: 0, MinY: 0, MaxX: 0, MaxY: 0}
	assert.Error(t, g.Validate())
}

func TestValidateRejectsNonDecreasingResolution(t *testing.T) {
	g := webMercatorish()
	g.Levels[1].Resolution = g.Levels[0].Resolution
	assert.Error(t, g.Validate())
}

func TestValidateRejectsMaxLessThanOne(t *testing.T) {
	g := webMercatorish()
	g.Levels[0].MaxX = 0
	assert.Error(t, g.Validate())
}

func TestValidateRejectsReservedOrigin(t *testing.T) {
	g := webMercatorish()
	g.Origin = OriginTopRight
	assert.Error(t, g.Validate())
}

func TestTileExtentBottomLeft(t *testing.T) {
	g := webMercatorish()
	e, err := g.TileExtent(1, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, -180.0, e.MinX, 1e-9)
	assert.InDelta(t, -180.0, e.MinY, 1e-9)
	assert.InDelta(t, 0.0, e.MaxX, 1e-9)
	assert.InDelta(t, 0.0, e.MaxY, 1e-9)
}

func TestTileExtentOutOfRange(t *testing.T) {
	g := webMercatorish()
	_, err := g.TileExtent(99, 0, 0)
	assert.Error(t, err)
}

// TestGetCellRoundTrip verifies spec.md §8's "Grid round-trip" invariant:
// get_tile_extent(get_cell(extent)) reproduces the same extent.
func TestGetCellRoundTrip(t *testing.T) {
	g := webMercatorish()
	want, err := g.TileExtent(2, 1, 2)
	require.NoError(t, err)

	z, x, y, ok := g.GetCell(want, 256, 256)
	require.True(t, ok)
	assert.Equal(t, 2, z)
	assert.Equal(t, 1, x)
	assert.Equal(t, 2, y)

	got, err := g.TileExtent(z, x, y)
	require.NoError(t, err)
	assert.InDelta(t, want.MinX, got.MinX, 1e-6)
	assert.InDelta(t, want.MinY, got.MinY, 1e-6)
	assert.InDelta(t, want.MaxX, got.MaxX, 1e-6)
	assert.InDelta(t, want.MaxY, got.MaxY, 1e-6)
}

func TestGetCellMisalignedReturnsNotOK(t *testing.T) {
	g := webMercatorish()
	misaligned := extent.Extent{MinX: -10, MinY: -10, MaxX: 110, MaxY: 110}
	_, _, _, ok := g.GetCell(misaligned, 256, 256)
	assert.False(t, ok)
}

func TestGetCellWrongSizeReturnsNotOK(t *testing.T) {
	g := webMercatorish()
	want, err := g.TileExtent(2, 1, 2)
	require.NoError(t, err)
	_, _, _, ok := g.GetCell(want, 512, 512)
	assert.False(t, ok)
}

func TestPointToTile(t *testing.T) {
	g := webMercatorish()
	x, y, err := g.PointToTile(1, -179.0, -89.0)
	require.NoError(t, err)
	assert.Equal(t, 0, x)
	assert.Equal(t, 0, y)
}

func TestBestLevelResolution(t *testing.T) {
	g := webMercatorish()
	// Requesting roughly level 2's resolution for a 256x256 tile.
	req := extent.Extent{MinX: 0, MinY: 0, MaxX: 360.0 / 4, MaxY: 360.0 / 4}
	z := g.BestLevelResolution(req, 256, 256)
	assert.Equal(t, 2, z)
}
