package render

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/cache/disk"
	"github.com/arx-os/mapcache/internal/extent"
	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/locker"
	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/source"
	"github.com/arx-os/mapcache/internal/tile"
)

func testGridLink() *grid.GridLink {
	g := &grid.Grid{
		Name:       "GoogleMapsCompatible",
		Extent:     extent.Extent{MinX: -180, MinY: -180, MaxX: 180, MaxY: 180},
		TileWidth:  16,
		TileHeight: 16,
		Origin:     grid.OriginBottomLeft,
		Levels: []grid.Level{
			{Resolution: 360.0 / 16, MaxX: 1, MaxY: 1},
			{Resolution: 360.0 / 32, MaxX: 2, MaxY: 2},
			{Resolution: 360.0 / 64, MaxX: 4, MaxY: 4},
			{Resolution: 360.0 / 128, MaxX: 8, MaxY: 8},
		},
	}
	return &grid.GridLink{Grid: g, MinZ: 0, MaxZ: len(g.Levels)}
}

func testTileset(dir string, gl *grid.GridLink) *Tileset {
	diskBackend := disk.New(dir, disk.TileCache)
	return &Tileset{
		Name:     "osm",
		GridLink: gl,
		Cache: &cache.Wrapper{
			Backend:    diskBackend,
			TileWidth:  gl.Grid.TileWidth,
			TileHeight: gl.Grid.TileHeight,
			Format:     "png",
		},
		Locker:        locker.NewDisk(dir + "-locks"),
		MetaSizeX:     2,
		MetaSizeY:     2,
		Format:        "png",
		Expires:       time.Hour,
		LockTimeout:   time.Second,
		RetryInterval: time.Millisecond,
	}
}

func TestFetchMissRendersAndStores(t *testing.T) {
	dir := t.TempDir()
	gl := testGridLink()
	ts := testTileset(dir, gl)
	ts.Source = &source.Dummy{}

	tl := &tile.Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5}
	ctx := WithBlocking(context.Background(), true)
	err := ts.Get(ctx, tl)
	require.NoError(t, err)
	assert.False(t, tl.Nodata)
	require.NotNil(t, tl.Image)
	data, err := tl.Image.Encode()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestFetchNonBlockingMissReturnsNodata(t *testing.T) {
	dir := t.TempDir()
	gl := testGridLink()
	ts := testTileset(dir, gl)
	ts.Source = &source.Dummy{}

	tl := &tile.Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5}
	ctx := WithBlocking(context.Background(), false)
	err := ts.Get(ctx, tl)
	require.NoError(t, err)
	assert.True(t, tl.Nodata)
}

func TestFetchSourcelessMissReturnsNodata(t *testing.T) {
	dir := t.TempDir()
	gl := testGridLink()
	ts := testTileset(dir, gl)
	ts.Source = nil

	tl := &tile.Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5}
	err := ts.Get(WithBlocking(context.Background(), true), tl)
	require.NoError(t, err)
	assert.True(t, tl.Nodata)
}

// TestFetchMetatileSplitsFourTiles grounds spec.md §8 scenario 1: a
// sibling tile within the same metatile becomes a cache hit off the
// first tile's render, with no additional source call.
func TestFetchMetatileSplitsFourTiles(t *testing.T) {
	dir := t.TempDir()
	gl := testGridLink()
	ts := testTileset(dir, gl)
	counting := &countingSource{}
	ts.Source = counting

	tl1 := &tile.Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5}
	ctx := WithBlocking(context.Background(), true)
	require.NoError(t, ts.Get(ctx, tl1))

	tl2 := &tile.Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 5, Y: 5}
	require.NoError(t, ts.Get(ctx, tl2))
	assert.False(t, tl2.Nodata)
	require.NotNil(t, tl2.Image)
	assert.Equal(t, 1, counting.Calls())
}

// countingSource counts RenderMap invocations so the single-flight
// invariant (spec.md §8) can be observed.
type countingSource struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingSource) RenderMap(ctx context.Context, m *tile.Map) (*raster.Image, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return (&source.Dummy{}).RenderMap(ctx, m)
}

// TestFetchSingleFlight is spec.md §8's "Single-flight" invariant: N
// concurrent identical misses invoke the source exactly once and every
// caller observes identical bytes.
func TestFetchSingleFlight(t *testing.T) {
	dir := t.TempDir()
	gl := testGridLink()
	ts := testTileset(dir, gl)
	counting := &countingSource{}
	ts.Source = counting

	const n = 8
	var wg sync.WaitGroup
	results := make([]*tile.Tile, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tl := &tile.Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5}
			_ = ts.Get(WithBlocking(context.Background(), true), tl)
			results[i] = tl
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, counting.Calls(), "exactly one metatile render across concurrent misses")

	var firstBytes []byte
	for _, r := range results {
		require.NotNil(t, r.Image)
		data, err := r.Image.Encode()
		require.NoError(t, err)
		if firstBytes == nil {
			firstBytes = data
		} else {
			assert.Equal(t, firstBytes, data)
		}
	}
}

func TestFetchAutoExpireTriggersReload(t *testing.T) {
	dir := t.TempDir()
	gl := testGridLink()
	ts := testTileset(dir, gl)
	ts.Source = &source.Dummy{}
	ts.AutoExpire = time.Nanosecond

	tl := &tile.Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5}
	ctx := WithBlocking(context.Background(), true)
	require.NoError(t, ts.Get(ctx, tl))

	time.Sleep(2 * time.Millisecond)

	counting := &countingSource{}
	ts.Source = counting
	tl2 := &tile.Tile{Tileset: "osm", GridLink: gl, Z: 3, X: 4, Y: 5}
	require.NoError(t, ts.Get(ctx, tl2))
	assert.False(t, tl2.Nodata)
	assert.Equal(t, 1, counting.Calls())
}
