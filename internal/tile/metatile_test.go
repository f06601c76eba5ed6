package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/mapcache/internal/extent"
	"github.com/arx-os/mapcache/internal/grid"
)

func testGridLink() *grid.GridLink {
	g := &grid.Grid{
		Name:       "GoogleMapsCompatible",
		Extent:     extent.Extent{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90},
		TileWidth:  256,
		TileHeight: 256,
		Origin:     grid.OriginBottomLeft,
		Levels: []grid.Level{
			{Resolution: 360.0 / 256, MaxX: 1, MaxY: 1},
			{Resolution: 360.0 / 512, MaxX: 2, MaxY: 2},
			{Resolution: 360.0 / 1024, MaxX: 4, MaxY: 4},
			{Resolution: 360.0 / 2048, MaxX: 8, MaxY: 8},
		},
	}
	return &grid.GridLink{Grid: g, MinZ: 0, MaxZ: len(g.Levels)}
}

// TestMetatileContainment is spec.md §8's "Metatile containment"
// invariant for a fully-interior metatile.
func TestMetatileContainment(t *testing.T) {
	gl := testGridLink()
	tl := &Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5}
	mt, err := New(tl, 2, 2, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, mt.MtX)
	assert.Equal(t, 2, mt.MtY)
	assert.Equal(t, 4, mt.NTiles())
	for _, child := range mt.Children {
		assert.GreaterOrEqual(t, child.X, mt.MtX*2)
		assert.Less(t, child.X, mt.MtX*2+mt.SizeX)
		assert.LessOrEqual(t, mt.MtX*2+mt.SizeX, gl.Grid.Levels[3].MaxX)
	}
}

// TestMetatileClampsAtEdge verifies edge metatiles shrink rather than
// overflow the grid (spec.md §4.3).
func TestMetatileClampsAtEdge(t *testing.T) {
	gl := testGridLink()
	tl := &Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 7, Y: 7}
	mt, err := New(tl, 2, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, mt.SizeX)
	assert.Equal(t, 1, mt.SizeY)
	assert.Equal(t, 1, mt.NTiles())
}

func TestMetatilePixelSize(t *testing.T) {
	gl := testGridLink()
	tl := &Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5}
	mt, err := New(tl, 2, 2, 10)
	require.NoError(t, err)
	w, h := mt.PixelSize()
	assert.Equal(t, 2*256+20, w)
	assert.Equal(t, 2*256+20, h)
}

func TestResourceKeyIncludesDimensions(t *testing.T) {
	gl := testGridLink()
	tl := &Tile{
		Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5,
		Dimensions: []RequestedDimension{{Name: "TIME", CachedValue: "2024-01-01"}},
	}
	mt, err := New(tl, 2, 2, 0)
	require.NoError(t, err)
	key := mt.ResourceKey()
	assert.Contains(t, key, "3-2-2-osm")
	assert.Contains(t, key, "GoogleMapsCompatible")
	assert.Contains(t, key, "2024-01-01")
}

func TestResourceKeyChangesWithMetasize(t *testing.T) {
	gl := testGridLink()
	tl := &Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5}
	mt2, err := New(tl, 2, 2, 0)
	require.NoError(t, err)
	mt4, err := New(tl, 4, 4, 0)
	require.NoError(t, err)
	assert.NotEqual(t, mt2.ResourceKey(), mt4.ResourceKey())
}
