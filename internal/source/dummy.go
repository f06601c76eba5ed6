package source

import (
	"context"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/tile"
)

// Dummy renders a deterministic synthetic image — a solid Color, or (if
// Checkerboard is set) a two-tone grid — with no network or disk I/O. It
// exists purely for tests and local experimentation, the Go analogue of
// the original C library's source_dummy.c.
type Dummy struct {
	Color        color.RGBA
	Checkerboard bool
	CellSize     int
}

func (d *Dummy) Name() string { return "dummy" }

func (d *Dummy) RenderMap(ctx context.Context, m *tile.Map) (*raster.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	c := d.Color
	if c == (color.RGBA{}) {
		c = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	}
	if !d.Checkerboard {
		draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
		return raster.NewFromRGBA(img, "png"), nil
	}

	cell := d.CellSize
	if cell <= 0 {
		cell = 32
	}
	alt := color.RGBA{R: 255 - c.R, G: 255 - c.G, B: 255 - c.B, A: 255}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if ((x/cell)+(y/cell))%2 == 0 {
				img.SetRGBA(x, y, c)
			} else {
				img.SetRGBA(x, y, alt)
			}
		}
	}
	return raster.NewFromRGBA(img, "png"), nil
}
