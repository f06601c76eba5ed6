package config

import "encoding/xml"

// The types below mirror the <mapcache> document shape from spec.md §6
// closely enough to build the typed Config tree; they are the minimal
// subset of the XML configuration parser's surface this project
// implements directly (SPEC_FULL.md §2.1 — the parser itself is an
// out-of-scope external collaborator).
type xmlDocument struct {
	XMLName          xml.Name `xml:"mapcache"`
	Mode             string   `xml:"mode,attr"`
	LockDir          string   `xml:"lock_dir"`
	LockRetry        string   `xml:"lock_retry"`
	ThreadedFetching bool     `xml:"threaded_fetching"`
	LogLevel         string   `xml:"log_level"`
	AutoReload       bool     `xml:"auto_reload"`
	DefaultFormat    string   `xml:"default_format"`

	Grids    []xmlGrid    `xml:"grid"`
	Formats  []xmlFormat  `xml:"format"`
	Sources  []xmlSource  `xml:"source"`
	Caches   []xmlCache   `xml:"cache"`
	Tilesets []xmlTileset `xml:"tileset"`
	Services []xmlService `xml:"service"`
}

type xmlGrid struct {
	Name        string `xml:"name,attr"`
	SRS         string `xml:"srs"`
	Extent      string `xml:"extent"`
	Size        string `xml:"size"`
	Origin      string `xml:"origin"`
	Units       string `xml:"units"`
	Resolutions string `xml:"resolutions"`
}

type xmlFormat struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type"`
}

type xmlSource struct {
	Name    string `xml:"name,attr"`
	Type    string `xml:"type,attr"` // "wms" or "dummy"
	URL     string `xml:"url"`
	Layers  string `xml:"layers"`
	Version string `xml:"version"`
	Color   string `xml:"color"`
}

type xmlCache struct {
	Name         string `xml:"name,attr"`
	Type         string `xml:"type,attr"` // disk|sqlite|redis|memcache|mbtiles
	Base         string `xml:"base"`
	Layout       string `xml:"layout"`
	DetectBlank  bool   `xml:"detect_blank"`
	SymlinkBlank bool   `xml:"symlink_blank"`
	Addr         string `xml:"addr"`
	DBFile       string `xml:"dbfile"`
	AutoExpire   string `xml:"auto_expire"`
	RetryCount   string `xml:"retry_count"`
	RetryDelay   string `xml:"retry_delay"`
	ReadOnly     bool   `xml:"read_only"`
}

type xmlDimension struct {
	Name          string   `xml:"name,attr"`
	Type          string   `xml:"type,attr"` // values|regex|intervals
	CaseSensitive bool     `xml:"case_sensitive,attr"`
	Values        []string `xml:"value"`
	Pattern       string   `xml:"pattern"`
	Intervals     []string `xml:"interval"` // "<start> <end> <resolution_seconds>"
}

type xmlTileset struct {
	Name                     string         `xml:"name,attr"`
	Grid                     string         `xml:"grid"`
	Cache                    string         `xml:"cache"`
	Source                   string         `xml:"source"`
	Format                   string         `xml:"format"`
	Metatile                 string         `xml:"metatile"`
	Metabuffer               string         `xml:"metabuffer"`
	Expires                  string         `xml:"expires"`
	AutoExpire               string         `xml:"auto_expire"`
	ReadOnly                 bool           `xml:"read_only"`
	LockTimeout              string         `xml:"lock_timeout"`
	RetryInterval            string         `xml:"retry_interval"`
	Dimensions               []xmlDimension `xml:"dimensions>dimension"`
	DimensionAssembly        string         `xml:"dimension_assembly"`
	StoreDimensionAssemblies bool           `xml:"store_dimension_assemblies"`
	SubdimensionReadOnly     bool           `xml:"subdimension_read_only"`
	MaxSubdimensions         string         `xml:"max_subdimensions"`
	MaxCachedZoom            string         `xml:"max_cached_zoom"`
	OutOfZoom                string         `xml:"out_of_zoom"` // reassemble|proxy
	MinZ                     string         `xml:"minz"`
	MaxZ                     string         `xml:"maxz"`
	ResampleMode             string         `xml:"resample_mode"` // nearest|bilinear
}

type xmlService struct {
	Type    string `xml:"type,attr"`
	Enabled bool   `xml:"enabled,attr"`
}
