package dimension

import (
	"context"
	"fmt"
	"regexp"

	"github.com/arx-os/mapcache/internal/extent"
)

// Regex is the Dimension{pattern} variant: a client value is valid if it
// matches the configured pattern (spec.md §3).
type Regex struct {
	DimName string
	Pattern *regexp.Regexp
}

func (r *Regex) Name() string { return r.DimName }

func (r *Regex) ValidateAndExpand(ctx context.Context, value string, _ extent.Extent) ([]string, error) {
	var out []string
	for _, candidate := range splitCommaList(value) {
		if !r.Pattern.MatchString(candidate) {
			return nil, fmt.Errorf("dimension %s: value %q does not match pattern %s", r.DimName, candidate, r.Pattern.String())
		}
		out = append(out, candidate)
	}
	return out, nil
}

// Enumerate cannot list all possible regex matches; it returns nothing.
func (r *Regex) Enumerate(ctx context.Context) ([]string, error) {
	return nil, nil
}
