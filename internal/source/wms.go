package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arx-os/mapcache/internal/raster"
	"github.com/arx-os/mapcache/internal/tile"
)

// WMS renders a Map request by issuing a WMS GetMap request to a remote
// server, grounded on services/tile-server/cmd/server/main.go's use of a
// plain net/http.Client with a configurable timeout for upstream calls.
type WMS struct {
	Client      *http.Client
	BaseURL     string
	Layers      []string
	Version     string // default "1.1.1"
	ExtraParams url.Values
}

func NewWMS(baseURL string, layers []string) *WMS {
	return &WMS{
		Client:  &http.Client{Timeout: 30 * time.Second},
		BaseURL: baseURL,
		Layers:  layers,
		Version: "1.1.1",
	}
}

func (w *WMS) Name() string { return "wms" }

func (w *WMS) RenderMap(ctx context.Context, m *tile.Map) (*raster.Image, error) {
	ext := m.Extent
	if !ext.Valid() {
		return nil, fmt.Errorf("source: wms: empty extent")
	}

	format := "image/png"
	srs := "EPSG:4326"
	if m.GridLink != nil && m.GridLink.Grid != nil && m.GridLink.Grid.SRS != "" {
		srs = m.GridLink.Grid.SRS
	}

	q := url.Values{}
	for k, v := range w.ExtraParams {
		q[k] = v
	}
	q.Set("SERVICE", "WMS")
	q.Set("REQUEST", "GetMap")
	q.Set("VERSION", w.Version)
	q.Set("LAYERS", strings.Join(w.Layers, ","))
	q.Set("FORMAT", format)
	q.Set("WIDTH", strconv.Itoa(m.Width))
	q.Set("HEIGHT", strconv.Itoa(m.Height))
	q.Set("TRANSPARENT", "TRUE")
	if w.Version == "1.3.0" {
		q.Set("CRS", srs)
	} else {
		q.Set("SRS", srs)
	}
	q.Set("BBOX", fmt.Sprintf("%.10f,%.10f,%.10f,%.10f", ext.MinX, ext.MinY, ext.MaxX, ext.MaxY))

	reqURL := w.BaseURL
	if strings.Contains(reqURL, "?") {
		reqURL += "&" + q.Encode()
	} else {
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("source: wms request: %w", err)
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: wms getmap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("source: wms getmap: status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source: wms read body: %w", err)
	}

	imgFormat := "png"
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "jpeg") {
		imgFormat = "jpeg"
	}
	img := raster.NewFromBytes(data, imgFormat)
	if _, err := img.Decode(); err != nil {
		return nil, fmt.Errorf("source: wms decode response: %w", err)
	}
	return img, nil
}
