// Package dimension implements validate+expand and enumerate for the
// non-spatial facets a tileset can carry (most importantly TIME), per
// spec.md §3 and §4.6.
package dimension

import (
	"context"
	"time"

	"github.com/arx-os/mapcache/internal/extent"
)

// Dimension is the capability trait every dimension kind implements
// (Values, Regex, Intervals, SQLite, PostgreSQL — spec.md §9 "Back-end
// polymorphism": tagged variants over a trait, no runtime plugin
// loading).
type Dimension interface {
	Name() string

	// ValidateAndExpand takes a client-supplied value and returns the
	// ordered list of cache-key sub-values it expands to. An empty slice
	// with a nil error means "no data" (spec.md §4.6 step 2).
	ValidateAndExpand(ctx context.Context, value string, tileExtent extent.Extent) ([]string, error)

	// Enumerate returns every possible cache-key value, used for
	// capabilities documents.
	Enumerate(ctx context.Context) ([]string, error)
}

// TimeRanger is implemented by dimensions that additionally support
// wall-clock range queries (spec.md §3: "Time dimensions additionally
// expose range").
type TimeRanger interface {
	Range(ctx context.Context, start, end time.Time) ([]string, error)
}
