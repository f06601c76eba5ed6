package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/mapcache/internal/grid"
)

const minimalDoc = `<?xml version="1.0" encoding="UTF-8"?>
<mapcache>
  <lock_dir>/tmp/mapcache-locks</lock_dir>
  <log_level>warn</log_level>
  <default_format>mypng</default_format>

  <grid name="WGS84">
    <srs>EPSG:4326</srs>
    <extent>-180 -90 180 90</extent>
    <size>256 256</size>
    <origin>bottom-left</origin>
    <units>dd</units>
    <resolutions>0.703125 0.3515625 0.17578125</resolutions>
  </grid>

  <format name="mypng"><type>PNG</type></format>

  <source name="osm-wms" type="wms">
    <url>http://wms.example.com/service</url>
    <layers>osm</layers>
  </source>

  <cache name="osm-disk" type="disk">
    <base>/tmp/mapcache-tiles</base>
    <layout>tilecache</layout>
    <detect_blank>true</detect_blank>
  </cache>

  <tileset name="osm">
    <grid>WGS84</grid>
    <cache>osm-disk</cache>
    <source>osm-wms</source>
    <format>mypng</format>
    <metatile>5 5</metatile>
    <metabuffer>10</metabuffer>
    <expires>3600</expires>
    <dimensions>
      <dimension name="STYLE" type="values" case_sensitive="false">
        <value>default</value>
        <value>inverse</value>
      </dimension>
    </dimensions>
  </tileset>

  <service type="wms" enabled="true"/>
  <service type="wmts" enabled="false"/>
</mapcache>
`

func TestParseResolvesReferences(t *testing.T) {
	cfg, err := Parse([]byte(minimalDoc))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/mapcache-locks", cfg.LockDir)
	assert.NotNil(t, cfg.Locker)
	assert.True(t, cfg.Services["wms"])
	assert.False(t, cfg.Services["wmts"])

	g, ok := cfg.Grids["WGS84"]
	require.True(t, ok)
	assert.Equal(t, "EPSG:4326", g.SRS)
	assert.Len(t, g.Levels, 3)

	ts, ok := cfg.Tilesets["osm"]
	require.True(t, ok)
	require.NotNil(t, ts.GridLink)
	assert.Same(t, g, ts.GridLink.Grid)
	require.NotNil(t, ts.Source)
	assert.Equal(t, "wms", ts.Source.Name())
	require.NotNil(t, ts.Cache)
	assert.Equal(t, "disk", ts.Cache.Backend.Name())
	assert.Equal(t, 5, ts.MetaSizeX)
	assert.Equal(t, 5, ts.MetaSizeY)
	assert.Equal(t, 10, ts.MetaBuffer)
	assert.Equal(t, "png", ts.Format)
	require.Len(t, ts.Dimensions, 1)
	assert.Equal(t, "STYLE", ts.Dimensions[0].Name())
}

func TestParseRejectsUnknownGridReference(t *testing.T) {
	doc := `<mapcache>
  <cache name="c" type="disk"><base>/tmp</base></cache>
  <tileset name="t"><grid>missing</grid><cache>c</cache></tileset>
</mapcache>`
	_, err := Parse([]byte(doc))
	assert.Error(t, err)
}

func TestParseRejectsUnknownCacheReference(t *testing.T) {
	doc := `<mapcache>
  <grid name="g">
    <extent>-180 -90 180 90</extent>
    <size>256 256</size>
    <resolutions>1</resolutions>
  </grid>
  <tileset name="t"><grid>g</grid><cache>missing</cache></tileset>
</mapcache>`
	_, err := Parse([]byte(doc))
	assert.Error(t, err)
}

func TestParseRejectsZeroMetatile(t *testing.T) {
	doc := `<mapcache>
  <grid name="g">
    <extent>-180 -90 180 90</extent>
    <size>256 256</size>
    <resolutions>1</resolutions>
  </grid>
  <cache name="c" type="disk"><base>/tmp</base></cache>
  <tileset name="t"><grid>g</grid><cache>c</cache><metatile>0 0</metatile></tileset>
</mapcache>`
	_, err := Parse([]byte(doc))
	assert.Error(t, err)
}

func TestParseDefaultsApplyWithoutOptionalElements(t *testing.T) {
	doc := `<mapcache>
  <grid name="g">
    <extent>-180 -90 180 90</extent>
    <size>256 256</size>
    <resolutions>1 0.5</resolutions>
  </grid>
  <cache name="c" type="disk"><base>/tmp</base></cache>
  <tileset name="t"><grid>g</grid><cache>c</cache></tileset>
</mapcache>`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "mixed", cfg.DefaultFormat)
	assert.Equal(t, "normal", cfg.Mode)
	ts := cfg.Tilesets["t"]
	assert.Equal(t, 1, ts.MetaSizeX)
	assert.Equal(t, 1, ts.MetaSizeY)
	assert.Equal(t, grid.NotConfigured, ts.GridLink.OutOfZoom)
}

func TestParseOutOfZoomAndMaxCachedZoom(t *testing.T) {
	doc := `<mapcache>
  <grid name="g">
    <extent>-180 -90 180 90</extent>
    <size>256 256</size>
    <resolutions>1 0.5 0.25 0.125</resolutions>
  </grid>
  <cache name="c" type="disk"><base>/tmp</base></cache>
  <tileset name="t">
    <grid>g</grid><cache>c</cache>
    <max_cached_zoom>1</max_cached_zoom>
    <out_of_zoom>reassemble</out_of_zoom>
  </tileset>
</mapcache>`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	gl := cfg.Tilesets["t"].GridLink
	assert.True(t, gl.HasMaxCachedZoom)
	assert.Equal(t, 1, gl.MaxCachedZoom)
	assert.Equal(t, grid.Reassemble, gl.OutOfZoom)
}

// TestParseMaxCachedZoomValidatesAgainstGridLinkWindow grounds spec.md §9's
// flagged defect: max_cached_zoom must be checked against the tileset's
// own narrowed [minz,maxz) window, not the grid's absolute level count.
// The grid here has 4 levels (0-3), but this tileset narrows maxz to 2
// (active zooms 0-1), so a max_cached_zoom of 1 must be accepted and a
// max_cached_zoom of 2 must be rejected even though level 2 exists on the
// grid itself.
func TestParseMaxCachedZoomValidatesAgainstGridLinkWindow(t *testing.T) {
	doc := `<mapcache>
  <grid name="g">
    <extent>-180 -90 180 90</extent>
    <size>256 256</size>
    <resolutions>1 0.5 0.25 0.125</resolutions>
  </grid>
  <cache name="c" type="disk"><base>/tmp</base></cache>
  <tileset name="t">
    <grid>g</grid><cache>c</cache>
    <maxz>2</maxz>
    <max_cached_zoom>1</max_cached_zoom>
    <out_of_zoom>reassemble</out_of_zoom>
  </tileset>
</mapcache>`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Tilesets["t"].GridLink.MaxCachedZoom)

	tooHigh := `<mapcache>
  <grid name="g">
    <extent>-180 -90 180 90</extent>
    <size>256 256</size>
    <resolutions>1 0.5 0.25 0.125</resolutions>
  </grid>
  <cache name="c" type="disk"><base>/tmp</base></cache>
  <tileset name="t">
    <grid>g</grid><cache>c</cache>
    <maxz>2</maxz>
    <max_cached_zoom>2</max_cached_zoom>
    <out_of_zoom>reassemble</out_of_zoom>
  </tileset>
</mapcache>`
	_, err = Parse([]byte(tooHigh))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gridlink's active max zoom")
}
