package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestEncodeDecodeRoundTripPNG(t *testing.T) {
	raw := solidRGBA(4, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	im := NewFromRGBA(raw, "png")
	data, err := im.Encode()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded := NewFromBytes(data, "png")
	out, err := decoded.Decode()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, out.RGBAAt(0, 0))
}

// TestBlankRoundTrip is spec.md §8's "Blank-tile round-trip" invariant: a
// uniform-RGBA image encoded and decoded reproduces the same RGBA.
func TestBlankRoundTrip(t *testing.T) {
	c := color.RGBA{R: 255, G: 0, B: 0, A: 255}
	im := Solid(16, 16, c, "png")
	blank, got := im.IsBlank()
	assert.True(t, blank)
	assert.Equal(t, c, got)

	data, err := im.Encode()
	require.NoError(t, err)
	decoded := NewFromBytes(data, "png")
	blank2, got2 := decoded.IsBlank()
	assert.True(t, blank2)
	assert.Equal(t, c, got2)
}

func TestIsBlankFalseForNonUniform(t *testing.T) {
	raw := image.NewRGBA(image.Rect(0, 0, 2, 2))
	raw.SetRGBA(0, 0, color.RGBA{R: 1, A: 255})
	raw.SetRGBA(1, 0, color.RGBA{R: 2, A: 255})
	im := NewFromRGBA(raw, "png")
	blank, _ := im.IsBlank()
	assert.False(t, blank)
}

func TestOpaque(t *testing.T) {
	opaque := NewFromRGBA(solidRGBA(2, 2, color.RGBA{A: 255}), "png")
	assert.True(t, opaque.Opaque())

	raw := image.NewRGBA(image.Rect(0, 0, 2, 2))
	raw.SetRGBA(0, 0, color.RGBA{A: 128})
	transparent := NewFromRGBA(raw, "png")
	assert.False(t, transparent.Opaque())
}

func TestMixedFormatPicksJPEGWhenOpaque(t *testing.T) {
	im := NewFromRGBA(solidRGBA(4, 4, color.RGBA{R: 1, G: 2, B: 3, A: 255}), "mixed")
	data, err := im.Encode()
	require.NoError(t, err)
	// JPEG magic bytes.
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, data[:3])
}

func TestMixedFormatPicksPNGWhenTransparent(t *testing.T) {
	raw := image.NewRGBA(image.Rect(0, 0, 4, 4))
	raw.SetRGBA(0, 0, color.RGBA{A: 0})
	im := NewFromRGBA(raw, "mixed")
	data, err := im.Encode()
	require.NoError(t, err)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}

func TestMergeCompositesOver(t *testing.T) {
	dst := solidRGBA(2, 2, color.RGBA{R: 255, A: 255})
	src := solidRGBA(2, 2, color.RGBA{B: 255, A: 255})
	Merge(dst, src)
	assert.Equal(t, color.RGBA{B: 255, A: 255}, dst.RGBAAt(0, 0))
}

func TestResampleModeFor(t *testing.T) {
	assert.Equal(t, Bilinear, ResampleModeFor(4, 256))
	assert.Equal(t, Nearest, ResampleModeFor(200, 256))
}

func TestResample(t *testing.T) {
	src := solidRGBA(4, 4, color.RGBA{R: 9, G: 9, B: 9, A: 255})
	out := Resample(src, 8, 8, Nearest)
	assert.Equal(t, 8, out.Bounds().Dx())
	assert.Equal(t, color.RGBA{R: 9, G: 9, B: 9, A: 255}, out.RGBAAt(0, 0))
}

func TestPasteAt(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src := solidRGBA(2, 2, color.RGBA{G: 255, A: 255})
	PasteAt(dst, src, 1, 1)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, dst.RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(0, 0))
}
