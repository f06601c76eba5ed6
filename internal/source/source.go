// Package source implements the render-backend adapters spec.md §4.3(d)
// calls into: "source.render_map(M) -> raw RGBA". The C implementation's
// GDAL and MapServer adapters (original_source/lib/source_gdal.c,
// source_mapserver.c) wrap third-party C libraries with no Go equivalent
// in the example pack and are intentionally not reimplemented here
// (SPEC_FULL.md §4.7, DESIGN.md); WMS and a deterministic Dummy adapter
// cover the contract for both production use and tests.
package source

import (
	"context"

	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/tile"
)

// Source renders a Map request into a raw RGBA image (spec.md §4.3(d),
// §4.7).
type Source interface {
	Name() string
	RenderMap(ctx context.Context, m *tile.Map) (*raster.Image, error)
}
