// Package render implements the core request-serving engine: metatile
// rendering and splitting, the tile fetch protocol with single-flight
// locking, out-of-zoom reassembly, WMS-style map assembly, and dimension
// assembly (spec.md §4.3-§4.6). Grounded throughout on
// services/tile-server/cmd/server/main.go's handler flow (cache lookup,
// miss handling, upstream render, store-then-serve) generalized from one
// fixed Postgres/MinIO pipeline into a pluggable cache/locker/source
// engine.
package render

import (
	"time"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/dimension"
	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/locker"
	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/source"
)

// DimensionAssembly selects how a tileset with dimensions merges its
// sub-dimension tiles (spec.md §4.6).
type DimensionAssembly int

const (
	AssemblyNone DimensionAssembly = iota
	AssemblyStack
	AssemblyAnimate
)

// Tileset bundles everything the fetch/assembly engine needs for one
// configured tileset: its cache, source, locker, metatiling and
// dimension policy (spec.md §3, §4.2-§4.6).
type Tileset struct {
	Name     string
	GridLink *grid.GridLink

	Cache  *cache.Wrapper
	Source source.Source // nil means source-less (spec.md §4.3 step "b")
	Locker locker.Locker

	MetaSizeX, MetaSizeY int
	MetaBuffer           int

	Format     string // "png", "jpeg", "mixed"
	AutoExpire time.Duration
	Expires    time.Duration
	ReadOnly   bool

	LockTimeout   time.Duration
	RetryInterval time.Duration

	Dimensions               []dimension.Dimension
	DimensionAssemblyType    DimensionAssembly
	StoreDimensionAssemblies bool
	SubdimensionReadOnly     bool

	ResampleMode raster.ResampleMode
	Watermark    *raster.Image

	// MaxSubdimensions caps the Cartesian product of sub-dimension
	// values in dimension assembly (spec.md §4.6 step 3, "cap it or
	// stream iteration" — we cap and report the overflow as an error
	// rather than silently truncating results).
	MaxSubdimensions int
}

func (ts *Tileset) dimensionByName(name string) dimension.Dimension {
	for _, d := range ts.Dimensions {
		if d.Name() == name {
			return d
		}
	}
	return nil
}
