package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/mapcache/internal/extent"
	"github.com/arx-os/mapcache/internal/source"
	"github.com/arx-os/mapcache/internal/tile"
)

func TestAssembleMapTransparentWhenNoTilesCovered(t *testing.T) {
	dir := t.TempDir()
	gl := testGridLink()
	// An empty active zoom window means every covering candidate fails
	// InBounds regardless of extent (spec.md §4.5 step 4, "zero tiles
	// remain").
	gl.MinZ, gl.MaxZ = 0, 0
	ts := testTileset(dir, gl)
	ts.Source = &source.Dummy{}

	m := &tile.Map{
		Tileset:  "osm",
		GridLink: gl,
		Extent:   extent.Extent{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90},
		Width:    64,
		Height:   64,
	}
	err := ts.AssembleMap(WithBlocking(context.Background(), true), m)
	require.NoError(t, err)
	require.NotNil(t, m.Image)
	raw, err := m.Image.Decode()
	require.NoError(t, err)
	assert.Equal(t, 64, raw.Bounds().Dx())
	for _, p := range []struct{ x, y int }{{0, 0}, {63, 63}} {
		c := raw.RGBAAt(p.x, p.y)
		assert.Equal(t, uint8(0), c.A)
	}
}

func TestAssembleMapExactExtentReturnsSourceImage(t *testing.T) {
	dir := t.TempDir()
	gl := testGridLink()
	ts := testTileset(dir, gl)
	ts.Source = &source.Dummy{}

	tileExt, err := gl.Grid.TileExtent(3, 4, 5)
	require.NoError(t, err)

	m := &tile.Map{
		Tileset:  "osm",
		GridLink: gl,
		Extent:   tileExt,
		Width:    16,
		Height:   16,
	}
	err = ts.AssembleMap(WithBlocking(context.Background(), true), m)
	require.NoError(t, err)
	require.NotNil(t, m.Image)
	raw, err := m.Image.Decode()
	require.NoError(t, err)
	assert.Equal(t, 16, raw.Bounds().Dx())
	assert.Equal(t, 16, raw.Bounds().Dy())
}
