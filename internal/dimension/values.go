package dimension

import (
	"context"
	"fmt"
	"strings"

	"github.com/arx-os/mapcache/internal/extent"
)

// Values is the Dimension{enum, case_sensitive?} variant from spec.md §3:
// a client value must match one of a fixed enumeration.
type Values struct {
	DimName       string
	Enum          []string
	CaseSensitive bool
}

func (v *Values) Name() string { return v.DimName }

func (v *Values) ValidateAndExpand(ctx context.Context, value string, _ extent.Extent) ([]string, error) {
	for _, candidate := range splitCommaList(value) {
		if !v.matches(candidate) {
			return nil, fmt.Errorf("dimension %s: value %q is not in the configured enumeration", v.DimName, candidate)
		}
	}
	return splitCommaList(value), nil
}

func (v *Values) matches(candidate string) bool {
	for _, e := range v.Enum {
		if v.CaseSensitive {
			if e == candidate {
				return true
			}
		} else if strings.EqualFold(e, candidate) {
			return true
		}
	}
	return false
}

func (v *Values) Enumerate(ctx context.Context) ([]string, error) {
	out := make([]string, len(v.Enum))
	copy(out, v.Enum)
	return out, nil
}

// splitCommaList implements the client convention of comma-separated
// multi-values (spec.md §3: "clients may supply ... comma-separated
// lists").
func splitCommaList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
