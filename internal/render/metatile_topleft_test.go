package render

import (
	"context"
	"image"
	"image/color"
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
	"github.com/arx-os/mapcache/internal/tile"
)

// bandSource paints the rendered metatile extent with horizontal bands
// whose intensity increases top-to-bottom in pixel space, so the split
// step's row assignment can be observed directly instead of inferred.
type bandSource struct{}

func (bandSource) Name() string { return "band" }

func (bandSource) RenderMap(ctx context.Context, m *tile.Map) (*raster.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		v := uint8(y * 255 / m.Height)
		for x := 0; x < m.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return raster.NewFromRGBA(img, "png"), nil
}

func topLeftGridLink() *grid.GridLink {
	g := &grid.Grid{
		Name:       "TopLeftTest",
		Extent:     extent.Extent{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90},
		TileWidth:  16,
		TileHeight: 16,
		Origin:     grid.OriginTopLeft,
		Levels: []grid.Level{
			{Resolution: 360.0 / 16, MaxX: 1, MaxY: 1},
			{Resolution: 360.0 / 32, MaxX: 2, MaxY: 2},
			{Resolution: 360.0 / 64, MaxX: 4, MaxY: 4},
		},
	}
	return &grid.GridLink{Grid: g, MinZ: 0, MaxZ: len(g.Levels)}
}

func averageRed(im *raster.Image) float64 {
	rgba, err := im.Decode()
	if err != nil {
		return -1
	}
	b := rgba.Bounds()
	var sum, n float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(rgba.RGBAAt(x, y).R)
			n++
		}
	}
	return sum / n
}

// TestRenderAndSplitTopLeftOriginRowOrder is the regression case for the
// metatile split's row-from-top computation: under a TopLeft grid, tile
// y=0 is the metatile's top row (spec.md §3's origin definition, mirrored
// by grid.TileExtent), so it must receive the source image's top pixel
// band, not the bottom one as a BottomLeft-only inversion would produce.
func TestRenderAndSplitTopLeftOriginRowOrder(t *testing.T) {
	dir := t.TempDir()
	gl := topLeftGridLink()
	diskBackend := disk.New(dir, disk.TileCache)
	ts := &Tileset{
		Name:     "topleft",
		GridLink: gl,
		Cache: &cache.Wrapper{
			Backend:    diskBackend,
			TileWidth:  gl.Grid.TileWidth,
			TileHeight: gl.Grid.TileHeight,
			Format:     "png",
		},
		Locker:        locker.NewDisk(dir + "-locks"),
		MetaSizeX:     1,
		MetaSizeY:     2,
		Format:        "png",
		Expires:       time.Hour,
		LockTimeout:   time.Second,
		RetryInterval: time.Millisecond,
		Source:        bandSource{},
	}

	top := &tile.Tile{Tileset: "topleft", GridLink: gl, Z: 1, X: 0, Y: 0}
	require.NoError(t, ts.Get(WithBlocking(context.Background(), true), top))
	require.NotNil(t, top.Image)

	bottom := &tile.Tile{Tileset: "topleft", GridLink: gl, Z: 1, X: 0, Y: 1}
	require.NoError(t, ts.Get(WithBlocking(context.Background(), true), bottom))
	require.NotNil(t, bottom.Image)

	topAvg := averageRed(top.Image)
	bottomAvg := averageRed(bottom.Image)
	assert.Less(t, topAvg, bottomAvg,
		"tile y=0 under a TopLeft grid must get the source image's top (darker) band, not the bottom one")
}
