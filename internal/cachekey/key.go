// Package cachekey builds the per-tile cache key and expands back-end
// path/URL templates from it (spec.md §4.2).
package cachekey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arx-os/mapcache/internal/tile"
)

// sanitize replaces the characters that would break a path or cache key
// component: '/' and '.' become '#' (spec.md §4.2).
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "#")
	s = strings.ReplaceAll(s, ".", "#")
	return s
}

// Build returns the per-tile cache key: tileset, grid, z, x, y, each
// dimension's cached value (sanitized), and the format extension.
// Dimension values appear in the order of t.Dimensions; Build does not
// reorder them, so two tiles listing the same dimensions in a different
// order produce different keys.
func Build(t *tile.Tile, ext string) string {
	parts := []string{
		t.Tileset,
		t.GridLink.Grid.Name,
		strconv.Itoa(t.Z),
		strconv.Itoa(t.X),
		strconv.Itoa(t.Y),
	}
	for _, d := range t.Dimensions {
		parts = append(parts, sanitize(d.CachedValue))
	}
	parts = append(parts, ext)
	return strings.Join(parts, "-")
}

// Expand substitutes a back-end path/URL template's placeholders:
// {tileset} {grid} {z} {x} {y} {inv_x} {inv_y} {inv_z} {ext} {dim}
// {dim:<name>} (spec.md §4.2).
func Expand(tmpl string, t *tile.Tile, ext string) string {
	lvl := t.GridLink.Grid.Levels[t.Z]
	invX := lvl.MaxX - 1 - t.X
	invY := lvl.MaxY - 1 - t.Y
	invZ := len(t.GridLink.Grid.Levels) - 1 - t.Z

	r := strings.NewReplacer(
		"{tileset}", t.Tileset,
		"{grid}", t.GridLink.Grid.Name,
		"{z}", strconv.Itoa(t.Z),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
		"{inv_x}", strconv.Itoa(invX),
		"{inv_y}", strconv.Itoa(invY),
		"{inv_z}", strconv.Itoa(invZ),
		"{ext}", ext,
		"{dim}", dimJoined(t),
	)
	out := r.Replace(tmpl)
	for _, d := range t.Dimensions {
		out = strings.ReplaceAll(out, fmt.Sprintf("{dim:%s}", d.Name), sanitize(d.CachedValue))
	}
	return out
}

func dimJoined(t *tile.Tile) string {
	parts := make([]string, len(t.Dimensions))
	for i, d := range t.Dimensions {
		parts[i] = sanitize(d.CachedValue)
	}
	return strings.Join(parts, "/")
}
