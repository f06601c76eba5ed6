package raster

import (
	"image"

	"golang.org/x/image/draw"
)

// Merge alpha-composites src over dst in place, used by dimension
// assembly to stack sub-dimension tiles (spec.md §4.6 step 4, "Sub-
// dimension overlay" invariant in spec.md §8).
func Merge(dst, src *image.RGBA) {
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
}

// Resample scales src into an image of size (dstW, dstH) using mode.
func Resample(src *image.RGBA, dstW, dstH int, mode ResampleMode) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	switch mode {
	case Bilinear:
		draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	default:
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
	return dst
}

// PasteAt copies src into dst at the given top-left offset without
// scaling, used when assembling covering tiles into one working image
// (spec.md §4.5 step 5, §4.4).
func PasteAt(dst *image.RGBA, src *image.RGBA, x, y int) {
	r := image.Rect(x, y, x+src.Bounds().Dx(), y+src.Bounds().Dy())
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
}

// Transparent builds a fully transparent w x h image.
func Transparent(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// ResampleModeFor picks nearest-neighbor when the scale factor is large
// (avoids rounding bugs at extreme scales) and bilinear otherwise, per
// spec.md §4.4's out-of-zoom reassembly rule: scale <= tileSx/2 uses
// bilinear, otherwise nearest-neighbor.
func ResampleModeFor(scaleFactor float64, tileSx int) ResampleMode {
	if scaleFactor <= float64(tileSx)/2 {
		return Bilinear
	}
	return Nearest
}
