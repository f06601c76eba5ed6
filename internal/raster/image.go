// Package raster holds the pixel-level value types and pure functions the
// core calls into: the lazily-decoded tile image, uniform-color ("blank")
// detection, alpha-compositing merge, and nearest/bilinear resampling.
//
// Per spec.md §1 the actual image codecs (PNG/JPEG/mixed encode-decode)
// and raster arithmetic are external, pluggable collaborators ("pure
// functions the core calls"); this package is the default, concrete
// implementation of that contract, built on golang.org/x/image/draw and
// the standard image/color rather than a hand-rolled scaler.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// BlankState is a tri-state cache of whether an image is a uniform color,
// matching the original's mapcache_image.is_blank (spec.md §3.1 EXPANSION).
type BlankState int

const (
	BlankUnknown BlankState = iota
	BlankNo
	BlankYes
)

// ResampleMode selects the scaling algorithm used during assembly.
type ResampleMode int

const (
	Nearest ResampleMode = iota
	Bilinear
)

// Image is a tile or map payload. It carries both the decoded RGBA form
// and the encoded byte form; codecs run only when a consumer needs the
// form it doesn't already have (spec.md §9 "Lazy decode").
type Image struct {
	Raw     *image.RGBA
	Encoded []byte
	Format  string // "png", "jpeg", "mixed"

	blank      BlankState
	blankColor color.RGBA
}

// NewFromRGBA wraps a decoded image.
func NewFromRGBA(img *image.RGBA, format string) *Image {
	return &Image{Raw: img, Format: format}
}

// NewFromBytes wraps encoded bytes without decoding them yet.
func NewFromBytes(data []byte, format string) *Image {
	return &Image{Encoded: data, Format: format}
}

// Decode returns the RGBA form, decoding Encoded on first use.
func (im *Image) Decode() (*image.RGBA, error) {
	if im.Raw != nil {
		return im.Raw, nil
	}
	if im.Encoded == nil {
		return nil, fmt.Errorf("raster: image has neither raw nor encoded data")
	}
	var decoded image.Image
	var err error
	switch im.Format {
	case "jpeg":
		decoded, err = jpeg.Decode(bytes.NewReader(im.Encoded))
	default:
		decoded, err = png.Decode(bytes.NewReader(im.Encoded))
	}
	if err != nil {
		return nil, fmt.Errorf("raster: decode: %w", err)
	}
	rgba, ok := decoded.(*image.RGBA)
	if !ok {
		b := decoded.Bounds()
		rgba = image.NewRGBA(b)
		draw.Draw(rgba, b, decoded, b.Min, draw.Src)
	}
	im.Raw = rgba
	return im.Raw, nil
}

// Encode returns the encoded byte form, encoding Raw on first use.
func (im *Image) Encode() ([]byte, error) {
	if im.Encoded != nil {
		return im.Encoded, nil
	}
	if im.Raw == nil {
		return nil, fmt.Errorf("raster: image has neither raw nor encoded data")
	}
	var buf bytes.Buffer
	var err error
	switch im.Format {
	case "jpeg":
		err = jpeg.Encode(&buf, im.Raw, &jpeg.Options{Quality: 85})
	case "mixed":
		if im.hasTransparency() {
			err = png.Encode(&buf, im.Raw)
		} else {
			err = jpeg.Encode(&buf, im.Raw, &jpeg.Options{Quality: 85})
		}
	default:
		err = png.Encode(&buf, im.Raw)
	}
	if err != nil {
		return nil, fmt.Errorf("raster: encode: %w", err)
	}
	im.Encoded = buf.Bytes()
	return im.Encoded, nil
}

func (im *Image) hasTransparency() bool {
	b := im.Raw.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if im.Raw.RGBAAt(x, y).A != 255 {
				return true
			}
		}
	}
	return false
}

// IsBlank reports whether the image is a single uniform color, caching
// the result (and the color) for reuse across split/store.
func (im *Image) IsBlank() (bool, color.RGBA) {
	if im.blank == BlankYes || im.blank == BlankNo {
		return im.blank == BlankYes, im.blankColor
	}
	rgba, err := im.Decode()
	if err != nil {
		im.blank = BlankNo
		return false, color.RGBA{}
	}
	b := rgba.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		im.blank = BlankNo
		return false, color.RGBA{}
	}
	first := rgba.RGBAAt(b.Min.X, b.Min.Y)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if rgba.RGBAAt(x, y) != first {
				im.blank = BlankNo
				return false, color.RGBA{}
			}
		}
	}
	im.blank = BlankYes
	im.blankColor = first
	return true, first
}

// Opaque reports whether every pixel has alpha 255, used by dimension
// assembly to stop merging early (spec.md §4.6 step 4).
func (im *Image) Opaque() bool {
	rgba, err := im.Decode()
	if err != nil {
		return false
	}
	b := rgba.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if rgba.RGBAAt(x, y).A != 255 {
				return false
			}
		}
	}
	return true
}

// Solid builds a w x h image filled with c, used for rule-hidden tiles
// and fully-transparent assembly fallbacks (spec.md §4.2, §4.5 step 4).
func Solid(w, h int, c color.RGBA, format string) *Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	out := NewFromRGBA(img, format)
	out.blank = BlankYes
	out.blankColor = c
	return out
}
