// Package disk implements the filesystem cache back-end: nested
// "tilecache" layout (default), "arcgis" hex layout, and user-supplied
// "template" layout, with blank-tile symlink deduplication (spec.md
// §4.2). Grounded on internal/storage/local.go's atomic-enough
// write/read pattern from the teacher repo.
package disk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"context"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/cachekey"
	"github.com/arx-os/mapcache/internal/tile"
)

// Layout selects the on-disk directory scheme.
type Layout int

const (
	TileCache Layout = iota // zz/xxx/xxx/xxx/yyy/yyy/yyy.ext
	ArcGIS                  // Lzz/Rhhhhhhhh/Chhhhhhhh.ext
	WorldWind
	Template // user-supplied path template
)

// Backend is the disk cache back-end. Stored blobs are the raw encoded
// tile with no trailer (spec.md §4.2).
type Backend struct {
	BasePath      string
	Layout        Layout
	PathTemplate  string // used when Layout == Template
	DetectBlank   bool
	SymlinkBlank  bool
	CreationRetry int
}

// New builds a disk back-end rooted at basePath.
func New(basePath string, layout Layout) *Backend {
	return &Backend{BasePath: basePath, Layout: layout, CreationRetry: 3}
}

func (b *Backend) Name() string { return "disk" }

func (b *Backend) path(t *tile.Tile, ext string) string {
	switch b.Layout {
	case ArcGIS:
		return filepath.Join(b.BasePath, arcgisPath(t, ext))
	case Template:
		return filepath.Join(b.BasePath, cachekey.Expand(b.PathTemplate, t, ext))
	default:
		return filepath.Join(b.BasePath, tilecachePath(t, ext))
	}
}

// tilecachePath is the default nested layout:
// <tileset>/<grid>/<dims>/zz/xxx/xxx/xxx/yyy/yyy/yyy.ext (spec.md §4.2,
// §8 scenario 1).
func tilecachePath(t *tile.Tile, ext string) string {
	z := pad(t.Z, 2)
	xs := split3(t.X)
	ys := split3(t.Y)
	parts := []string{t.Tileset, t.GridLink.Grid.Name}
	for _, d := range t.Dimensions {
		parts = append(parts, sanitizePath(d.CachedValue))
	}
	parts = append(parts, z, xs[0], xs[1], xs[2], ys[0], ys[1], ys[2]+"."+ext)
	return filepath.Join(parts...)
}

func sanitizePath(v string) string {
	out := []byte(v)
	for i, c := range out {
		if c == '/' || c == '.' {
			out[i] = '#'
		}
	}
	return string(out)
}

// arcgisPath implements the Lzz/Rhhhhhhhh/Chhhhhhhh.ext hex, row-major
// layout (spec.md §4.2).
func arcgisPath(t *tile.Tile, ext string) string {
	return fmt.Sprintf("L%02d/R%08x/C%08x.%s", t.Z, t.Y, t.X, ext)
}

func pad(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// split3 splits a zero-padded 9-digit integer into three 3-digit groups,
// the "xxx/xxx/xxx" nesting of the tilecache layout.
func split3(n int) [3]string {
	s := pad(n, 9)
	return [3]string{s[0:3], s[3:6], s[6:9]}
}

func (b *Backend) TileGet(ctx context.Context, t *tile.Tile) (cache.Entry, cache.Result, error) {
	format := tileFormat(t)
	path := b.path(t, format)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cache.Entry{}, cache.Miss, nil
		}
		return cache.Entry{}, cache.Miss, fmt.Errorf("disk: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return cache.Entry{}, cache.Miss, fmt.Errorf("disk: stat %s: %w", path, err)
	}
	// A zero-length file means another writer is mid-write (spec.md §4.2).
	if info.Size() == 0 {
		return cache.Entry{}, cache.Miss, nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return cache.Entry{}, cache.Miss, fmt.Errorf("disk: read %s: %w", path, err)
	}

	return cache.Entry{Data: data, Mtime: info.ModTime()}, cache.Hit, nil
}

func (b *Backend) TileSet(ctx context.Context, t *tile.Tile, e cache.Entry) error {
	format := tileFormat(t)
	path := b.path(t, format)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("disk: mkdir %s: %w", filepath.Dir(path), err)
	}

	if b.DetectBlank && b.SymlinkBlank && e.Blank != nil {
		return b.writeBlankSymlink(path, *e.Blank, format, e.Data)
	}

	return b.atomicWrite(path, e.Data)
}

// atomicWrite implements "remove -> create -> write -> close", with
// CreationRetry recreations on ENOENT to handle NFS cache coherency
// (spec.md §4.2).
func (b *Backend) atomicWrite(path string, data []byte) error {
	os.Remove(path)
	var lastErr error
	for i := 0; i <= b.CreationRetry; i++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			if os.IsNotExist(err) {
				if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
					return fmt.Errorf("disk: mkdir retry %s: %w", filepath.Dir(path), mkErr)
				}
				lastErr = err
				continue
			}
			return fmt.Errorf("disk: create %s: %w", path, err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil {
			return fmt.Errorf("disk: write %s: %w", path, werr)
		}
		if cerr != nil {
			return fmt.Errorf("disk: close %s: %w", path, cerr)
		}
		return nil
	}
	return fmt.Errorf("disk: create %s after %d retries: %w", path, b.CreationRetry, lastErr)
}

// writeBlankSymlink creates blanks/AARRGGBB.ext once per color then
// symlinks the tile path to it as a relative path (spec.md §4.2).
func (b *Backend) writeBlankSymlink(path string, c [4]uint8, format string, data []byte) error {
	blanksDir := filepath.Join(b.BasePath, "blanks")
	if err := os.MkdirAll(blanksDir, 0o755); err != nil {
		return fmt.Errorf("disk: mkdir blanks: %w", err)
	}
	blankName := fmt.Sprintf("%02X%02X%02X%02X.%s", c[3], c[0], c[1], c[2], format)
	blankPath := filepath.Join(blanksDir, blankName)

	if _, err := os.Stat(blankPath); os.IsNotExist(err) {
		if err := b.atomicWrite(blankPath, data); err != nil {
			return err
		}
	}

	rel, err := filepath.Rel(filepath.Dir(path), blankPath)
	if err != nil {
		return fmt.Errorf("disk: relpath: %w", err)
	}
	os.Remove(path)
	return os.Symlink(rel, path)
}

func (b *Backend) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	path := b.path(t, tileFormat(t))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Size() > 0, nil
}

func (b *Backend) TileDelete(ctx context.Context, t *tile.Tile) error {
	path := b.path(t, tileFormat(t))
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("disk: delete %s: %w", path, err)
	}
	return nil
}

func tileFormat(t *tile.Tile) string {
	if t.Image != nil && t.Image.Format != "" {
		return t.Image.Format
	}
	return "png"
}
