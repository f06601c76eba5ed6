// Package config builds the typed, post-validation configuration tree
// (spec.md §6) from a <mapcache> XML document: defaults are merged with
// the parsed file the way internal/config/loader.go's layered
// ConfigSource chain does in the teacher repo, then every name reference
// (tileset -> grid/cache/source/format) is resolved to a direct pointer,
// matching spec.md §9's "ownership cycles" note (arena-resolved
// references, no graph).
package config

import (
	"encoding/xml"
	"fmt"
	"image/color"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/cache/disk"
	"github.com/arx-os/mapcache/internal/cache/kv"
	"github.com/arx-os/mapcache/internal/dimension"
	"github.com/arx-os/mapcache/internal/extent"
	"github.com/arx-os/mapcache/internal/grid"
	"github.com/arx-os/mapcache/internal/locker"
	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/render"
	"github.com/arx-os/mapcache/internal/source"
	"github.com/arx-os/mapcache/internal/tile"
)

// Config is the fully-resolved tree a running server or CLI consumes. It
// is immutable after Parse returns; callers share it by reference across
// worker goroutines (spec.md §5 "Configuration is immutable after
// startup").
type Config struct {
	Mode             string
	LockDir          string
	LockRetry        time.Duration
	ThreadedFetching bool
	LogLevel         logrus.Level
	AutoReload       bool
	DefaultFormat    string

	Grids    map[string]*grid.Grid
	Tilesets map[string]*render.Tileset
	Services map[string]bool

	Locker locker.Locker
}

// defaults returns the built-in baseline every parsed document is merged
// on top of (the lowest-priority source in the teacher's layered-loader
// terminology).
func defaults() *Config {
	return &Config{
		Mode:             "normal",
		LockRetry:        100 * time.Millisecond,
		LogLevel:         logrus.InfoLevel,
		DefaultFormat:    "mixed",
		Grids:            map[string]*grid.Grid{},
		Tilesets:         map[string]*render.Tileset{},
		Services:         map[string]bool{},
	}
}

// Parse builds a Config from one <mapcache> XML document.
func Parse(data []byte) (*Config, error) {
	var doc xmlDocument
	if err := unmarshalXML(data, &doc); err != nil {
		return nil, err
	}
	return build(&doc)
}

func unmarshalXML(data []byte, doc *xmlDocument) error {
	if err := xml.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("config: parse xml: %w", err)
	}
	return nil
}

func build(doc *xmlDocument) (*Config, error) {
	cfg := defaults()

	if doc.Mode != "" {
		cfg.Mode = doc.Mode
	}
	cfg.LockDir = doc.LockDir
	if doc.LockRetry != "" {
		secs, err := strconv.ParseFloat(doc.LockRetry, 64)
		if err != nil {
			return nil, fmt.Errorf("config: lock_retry: %w", err)
		}
		cfg.LockRetry = time.Duration(secs * float64(time.Second))
	}
	cfg.ThreadedFetching = doc.ThreadedFetching
	cfg.AutoReload = doc.AutoReload
	if doc.DefaultFormat != "" {
		cfg.DefaultFormat = doc.DefaultFormat
	}
	if doc.LogLevel != "" {
		lvl, err := logrus.ParseLevel(doc.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("config: log_level %q: %w", doc.LogLevel, err)
		}
		cfg.LogLevel = lvl
	}

	for _, s := range doc.Services {
		cfg.Services[strings.ToLower(s.Type)] = s.Enabled
	}

	for _, g := range doc.Grids {
		built, err := buildGrid(g)
		if err != nil {
			return nil, err
		}
		cfg.Grids[built.Name] = built
	}

	formats := map[string]string{}
	for _, f := range doc.Formats {
		formats[f.Name] = strings.ToLower(f.Type)
	}

	sources := map[string]source.Source{}
	for _, s := range doc.Sources {
		built, err := buildSource(s)
		if err != nil {
			return nil, err
		}
		sources[s.Name] = built
	}

	caches := map[string]cache.Backend{}
	cacheReadOnly := map[string]bool{}
	for _, c := range doc.Caches {
		built, err := buildCacheBackend(c)
		if err != nil {
			return nil, err
		}
		caches[c.Name] = built
		cacheReadOnly[c.Name] = c.ReadOnly
	}

	if doc.LockDir != "" {
		cfg.Locker = locker.NewDisk(doc.LockDir)
	}

	for _, t := range doc.Tilesets {
		built, err := buildTileset(t, cfg, caches, cacheReadOnly, sources, formats, cfg.Locker)
		if err != nil {
			return nil, fmt.Errorf("config: tileset %s: %w", t.Name, err)
		}
		cfg.Tilesets[t.Name] = built
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate enforces spec.md §6's post-parse checks: every tileset has a
// grid-link, every referenced name exists (already enforced during
// build by returning an error), metasize >= 1.
func validate(cfg *Config) error {
	for name, ts := range cfg.Tilesets {
		if ts.GridLink == nil {
			return fmt.Errorf("config: tileset %s: no grid-link configured", name)
		}
		if ts.MetaSizeX < 1 || ts.MetaSizeY < 1 {
			return fmt.Errorf("config: tileset %s: metasize must be >= 1", name)
		}
	}
	return nil
}

func buildGrid(g xmlGrid) (*grid.Grid, error) {
	ext, err := parseExtent(g.Extent)
	if err != nil {
		return nil, fmt.Errorf("config: grid %s: extent: %w", g.Name, err)
	}
	w, h, err := parseIntPair(g.Size)
	if err != nil {
		return nil, fmt.Errorf("config: grid %s: size: %w", g.Name, err)
	}
	resolutions, err := parseFloatList(g.Resolutions)
	if err != nil {
		return nil, fmt.Errorf("config: grid %s: resolutions: %w", g.Name, err)
	}
	if len(resolutions) == 0 {
		return nil, fmt.Errorf("config: grid %s: no resolutions configured", g.Name)
	}

	levels := make([]grid.Level, len(resolutions))
	for i, res := range resolutions {
		maxX := int((ext.MaxX - ext.MinX) / (res * float64(w)))
		maxY := int((ext.MaxY - ext.MinY) / (res * float64(h)))
		if maxX < 1 {
			maxX = 1
		}
		if maxY < 1 {
			maxY = 1
		}
		levels[i] = grid.Level{Resolution: res, MaxX: maxX, MaxY: maxY}
	}

	out := &grid.Grid{
		Name:       g.Name,
		SRS:        g.SRS,
		Unit:       parseUnit(g.Units),
		Extent:     ext,
		TileWidth:  w,
		TileHeight: h,
		Origin:     parseOrigin(g.Origin),
		Levels:     levels,
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseOrigin(s string) grid.Origin {
	switch strings.ToLower(s) {
	case "top-left", "topleft":
		return grid.OriginTopLeft
	default:
		return grid.OriginBottomLeft
	}
}

func parseUnit(s string) grid.Unit {
	switch strings.ToLower(s) {
	case "degrees", "dd":
		return grid.UnitDegrees
	case "feet", "ft":
		return grid.UnitFeet
	default:
		return grid.UnitMeters
	}
}

func buildSource(s xmlSource) (source.Source, error) {
	switch strings.ToLower(s.Type) {
	case "", "wms":
		layers := strings.Split(s.Layers, ",")
		wms := source.NewWMS(s.URL, layers)
		if s.Version != "" {
			wms.Version = s.Version
		}
		return wms, nil
	case "dummy":
		d := &source.Dummy{}
		if s.Color != "" {
			c, err := parseRGBA(s.Color)
			if err != nil {
				return nil, fmt.Errorf("config: source %s: color: %w", s.Name, err)
			}
			d.Color = color.RGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("config: source %s: unknown type %q", s.Name, s.Type)
	}
}

func buildCacheBackend(c xmlCache) (cache.Backend, error) {
	switch strings.ToLower(c.Type) {
	case "", "disk":
		layout := disk.TileCache
		switch strings.ToLower(c.Layout) {
		case "arcgis":
			layout = disk.ArcGIS
		case "worldwind":
			layout = disk.WorldWind
		}
		b := disk.New(c.Base, layout)
		b.DetectBlank = c.DetectBlank
		b.SymlinkBlank = c.SymlinkBlank
		return b, nil
	case "sqlite", "sqlite3":
		return kv.OpenSQLite(c.DBFile, kv.SQLite{
			CreateQuery: "",
			ExistsQuery: `SELECT 1 FROM tiles WHERE tileset=:tileset AND grid=:grid AND x=:x AND y=:y AND z=:z AND dim=:dim`,
			GetQuery:    `SELECT data FROM tiles WHERE tileset=:tileset AND grid=:grid AND x=:x AND y=:y AND z=:z AND dim=:dim`,
			SetQuery:    `INSERT OR REPLACE INTO tiles (tileset,grid,x,y,z,dim,data,mtime) VALUES (:tileset,:grid,:x,:y,:z,:dim,:data,:mtime)`,
			DeleteQuery: `DELETE FROM tiles WHERE tileset=:tileset AND grid=:grid AND x=:x AND y=:y AND z=:z AND dim=:dim`,
		})
	case "mbtiles":
		return kv.OpenMBTiles(c.DBFile)
	case "memcache":
		return kv.NewMemcache(strings.Split(c.Addr, ",")...), nil
	case "redis":
		return nil, fmt.Errorf("config: cache %s: redis cache requires a programmatic *redis.Options; use kv.NewRedis directly", c.Name)
	default:
		return nil, fmt.Errorf("config: cache %s: unknown type %q", c.Name, c.Type)
	}
}

func buildTileset(
	t xmlTileset,
	cfg *Config,
	caches map[string]cache.Backend,
	cacheReadOnly map[string]bool,
	sources map[string]source.Source,
	formats map[string]string,
	lk locker.Locker,
) (*render.Tileset, error) {
	g, ok := cfg.Grids[t.Grid]
	if !ok {
		return nil, fmt.Errorf("unknown grid %q", t.Grid)
	}
	gl := &grid.GridLink{Grid: g, MinZ: 0, MaxZ: len(g.Levels)}
	if t.MinZ != "" {
		z, err := strconv.Atoi(t.MinZ)
		if err != nil {
			return nil, fmt.Errorf("minz: %w", err)
		}
		gl.MinZ = z
	}
	if t.MaxZ != "" {
		z, err := strconv.Atoi(t.MaxZ)
		if err != nil {
			return nil, fmt.Errorf("maxz: %w", err)
		}
		gl.MaxZ = z
	}
	if t.MaxCachedZoom != "" {
		z, err := strconv.Atoi(t.MaxCachedZoom)
		if err != nil {
			return nil, fmt.Errorf("max_cached_zoom: %w", err)
		}
		// Validate against the grid-link's own active window (gl.MaxZ,
		// exclusive), not the grid's absolute level count: spec.md §9
		// flags the original's check against the grid's raw max zoom as
		// misleading when a tileset narrows its active range with
		// minz/maxz.
		if z > gl.MaxZ-1 {
			return nil, fmt.Errorf("max_cached_zoom %d exceeds gridlink's active max zoom %d", z, gl.MaxZ-1)
		}
		gl.HasMaxCachedZoom = true
		gl.MaxCachedZoom = z
		switch strings.ToLower(t.OutOfZoom) {
		case "proxy":
			gl.OutOfZoom = grid.Proxy
		case "reassemble":
			gl.OutOfZoom = grid.Reassemble
		}
	}

	backend, ok := caches[t.Cache]
	if !ok {
		return nil, fmt.Errorf("unknown cache %q", t.Cache)
	}

	format := t.Format
	if kind, ok := formats[format]; ok {
		format = kind
	}
	if format == "" {
		format = cfg.DefaultFormat
	}

	ts := &render.Tileset{
		Name:          t.Name,
		GridLink:      gl,
		Locker:        lk,
		Format:        format,
		ReadOnly:      t.ReadOnly || cacheReadOnly[t.Cache],
		MetaSizeX:     1,
		MetaSizeY:     1,
		LockTimeout:   120 * time.Second,
		RetryInterval: 100 * time.Millisecond,
	}

	ts.Cache = &cache.Wrapper{
		Backend:    backend,
		ReadOnly:   ts.ReadOnly,
		TileWidth:  g.TileWidth,
		TileHeight: g.TileHeight,
		Format:     format,
		RuleLookup: func(t *tile.Tile) (*grid.Rule, bool) { return gl.RuleFor(t.Z) },
	}

	if t.Source != "" {
		src, ok := sources[t.Source]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", t.Source)
		}
		ts.Source = src
	}

	if t.Metatile != "" {
		mx, my, err := parseIntPair(t.Metatile)
		if err != nil {
			return nil, fmt.Errorf("metatile: %w", err)
		}
		ts.MetaSizeX, ts.MetaSizeY = mx, my
	}
	if t.Metabuffer != "" {
		mb, err := strconv.Atoi(t.Metabuffer)
		if err != nil {
			return nil, fmt.Errorf("metabuffer: %w", err)
		}
		ts.MetaBuffer = mb
	}
	if t.Expires != "" {
		secs, err := strconv.Atoi(t.Expires)
		if err != nil {
			return nil, fmt.Errorf("expires: %w", err)
		}
		ts.Expires = time.Duration(secs) * time.Second
	}
	if t.AutoExpire != "" {
		secs, err := strconv.Atoi(t.AutoExpire)
		if err != nil {
			return nil, fmt.Errorf("auto_expire: %w", err)
		}
		ts.AutoExpire = time.Duration(secs) * time.Second
	}
	if t.LockTimeout != "" {
		secs, err := strconv.ParseFloat(t.LockTimeout, 64)
		if err != nil {
			return nil, fmt.Errorf("lock_timeout: %w", err)
		}
		ts.LockTimeout = time.Duration(secs * float64(time.Second))
	}
	if t.RetryInterval != "" {
		secs, err := strconv.ParseFloat(t.RetryInterval, 64)
		if err != nil {
			return nil, fmt.Errorf("retry_interval: %w", err)
		}
		ts.RetryInterval = time.Duration(secs * float64(time.Second))
	}
	if t.MaxSubdimensions != "" {
		n, err := strconv.Atoi(t.MaxSubdimensions)
		if err != nil {
			return nil, fmt.Errorf("max_subdimensions: %w", err)
		}
		ts.MaxSubdimensions = n
	}
	switch strings.ToLower(t.ResampleMode) {
	case "bilinear":
		ts.ResampleMode = raster.Bilinear
	default:
		ts.ResampleMode = raster.Nearest
	}

	switch strings.ToLower(t.DimensionAssembly) {
	case "stack":
		ts.DimensionAssemblyType = render.AssemblyStack
	case "animate":
		ts.DimensionAssemblyType = render.AssemblyAnimate
	}
	ts.StoreDimensionAssemblies = t.StoreDimensionAssemblies
	ts.SubdimensionReadOnly = t.SubdimensionReadOnly

	for _, d := range t.Dimensions {
		built, err := buildDimension(d)
		if err != nil {
			return nil, fmt.Errorf("dimension %s: %w", d.Name, err)
		}
		ts.Dimensions = append(ts.Dimensions, built)
	}

	return ts, nil
}

func buildDimension(d xmlDimension) (dimension.Dimension, error) {
	switch strings.ToLower(d.Type) {
	case "", "values":
		return &dimension.Values{DimName: d.Name, Enum: d.Values, CaseSensitive: d.CaseSensitive}, nil
	case "regex":
		pat, err := regexp.Compile(d.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern: %w", err)
		}
		return &dimension.Regex{DimName: d.Name, Pattern: pat}, nil
	case "intervals", "time":
		ivs := make([]dimension.Interval, 0, len(d.Intervals))
		for _, raw := range d.Intervals {
			iv, err := parseInterval(raw)
			if err != nil {
				return nil, err
			}
			ivs = append(ivs, iv)
		}
		return &dimension.Intervals{DimName: d.Name, Intervals: ivs}, nil
	default:
		return nil, fmt.Errorf("unknown dimension type %q", d.Type)
	}
}

func parseInterval(raw string) (dimension.Interval, error) {
	fields := strings.Fields(raw)
	if len(fields) != 3 {
		return dimension.Interval{}, fmt.Errorf("interval %q: expected \"start end resolution_seconds\"", raw)
	}
	start, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		return dimension.Interval{}, fmt.Errorf("interval start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, fields[1])
	if err != nil {
		return dimension.Interval{}, fmt.Errorf("interval end: %w", err)
	}
	secs, err := strconv.Atoi(fields[2])
	if err != nil {
		return dimension.Interval{}, fmt.Errorf("interval resolution: %w", err)
	}
	return dimension.Interval{Start: start, End: end, Resolution: time.Duration(secs) * time.Second}, nil
}

func parseExtent(s string) (extent.Extent, error) {
	vals, err := parseFloatList(s)
	if err != nil {
		return extent.Extent{}, err
	}
	if len(vals) != 4 {
		return extent.Extent{}, fmt.Errorf("expected 4 values, got %d", len(vals))
	}
	return extent.Extent{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}, nil
}

func parseFloatList(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseIntPair(s string) (int, int, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected 2 values, got %d in %q", len(fields), s)
	}
	a, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func parseRGBA(s string) ([4]uint8, error) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return [4]uint8{}, fmt.Errorf("expected 4 values (r g b a), got %d", len(fields))
	}
	var out [4]uint8
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return [4]uint8{}, err
		}
		out[i] = uint8(v)
	}
	return out, nil
}
