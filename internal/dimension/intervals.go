package dimension

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arx-os/mapcache/internal/extent"
)

// Interval is one [start,end,resolution] triple of an Intervals
// dimension (spec.md §3). Start and End are instants; resolution is
// the step between consecutive cache-key sub-values.
type Interval struct {
	Start, End time.Time
	Resolution time.Duration
}

// Intervals is the Dimension{[start,end,resolution]…} variant, typically
// used for TIME (spec.md §3, §8 scenario 4).
type Intervals struct {
	DimName   string
	Intervals []Interval
}

func (d *Intervals) Name() string { return d.DimName }

// ValidateAndExpand accepts an ISO-8601 instant, an ISO-8601 interval
// ("start/end"), or a comma-separated list of either, and returns the
// covering cache-key sub-values snapped to each interval's resolution
// (spec.md §3, §8 scenario 4).
func (d *Intervals) ValidateAndExpand(ctx context.Context, value string, _ extent.Extent) ([]string, error) {
	var out []string
	for _, clause := range splitCommaList(value) {
		start, end, err := parseClause(clause)
		if err != nil {
			return nil, fmt.Errorf("dimension %s: %w", d.DimName, err)
		}
		values, err := d.Range(ctx, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	return out, nil
}

// Range returns every cache-key value covering [start,end] across all
// configured sub-intervals (spec.md §3 TimeRanger contract).
func (d *Intervals) Range(ctx context.Context, start, end time.Time) ([]string, error) {
	var out []string
	for _, iv := range d.Intervals {
		lo := start
		if iv.Start.After(lo) {
			lo = iv.Start
		}
		hi := end
		if iv.End.Before(hi) {
			hi = iv.End
		}
		if hi.Before(lo) {
			continue
		}
		step := iv.Resolution
		if step <= 0 {
			step = hi.Sub(lo)
			if step <= 0 {
				out = append(out, formatInstant(lo))
				continue
			}
		}
		for t := lo; !t.After(hi); t = t.Add(step) {
			out = append(out, formatInstant(t))
		}
	}
	return out, nil
}

func (d *Intervals) Enumerate(ctx context.Context) ([]string, error) {
	if len(d.Intervals) == 0 {
		return nil, nil
	}
	full := d.Intervals[0]
	return d.Range(ctx, full.Start, d.Intervals[len(d.Intervals)-1].End)
}

func formatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// parseClause parses "2024-01-01", "2024-01-01T00:00:00Z", or
// "2024-01-01/2024-01-03" (spec.md §3).
func parseClause(clause string) (time.Time, time.Time, error) {
	parts := strings.SplitN(clause, "/", 2)
	start, err := parseInstant(parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if len(parts) == 1 {
		return start, start, nil
	}
	end, err := parseInstant(parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseInstant(s string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 instant %q: %w", s, lastErr)
}
