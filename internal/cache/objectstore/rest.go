package objectstore

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/tile"
)

// Signer authenticates an outgoing REST request by mutating its headers
// in place, mirroring cache_rest.c's pluggable auth schemes (legacy AWS
// HMAC-SHA1, Azure SharedKey, Google's AWS-compatible interop mode).
// SigV4 authentication is better served by the native S3 client (see
// S3Config.Endpoint) rather than reimplemented here; see DESIGN.md.
type Signer interface {
	Sign(req *http.Request, body []byte) error
}

// REST is the generic URL-templated HTTP object-store back-end for
// S3-compatible (or otherwise bespoke) endpoints that don't fit the
// AWS/Azure/GCS SDKs, grounded on original_source/lib/cache_rest.c's
// curl-based PUT/HEAD/GET/DELETE engine (spec.md §4.2 "REST back-end").
type REST struct {
	Client      *http.Client
	URLTemplate string // e.g. "https://{tileset}.example.com/{grid}/{z}/{x}/{y}.{ext}"
	Headers     map[string]string
	Signer      Signer
}

func NewREST(urlTemplate string, signer Signer) *REST {
	return &REST{
		Client:      &http.Client{Timeout: 30 * time.Second},
		URLTemplate: urlTemplate,
		Signer:      signer,
	}
}

func (r *REST) Name() string { return "rest" }

func (r *REST) url(t *tile.Tile) string {
	return objectKey(r.URLTemplate, t, tileFormat(t))
}

func (r *REST) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("objectstore: rest request: %w", err)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if r.Signer != nil {
		if err := r.Signer.Sign(req, body); err != nil {
			return nil, fmt.Errorf("objectstore: rest sign: %w", err)
		}
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("objectstore: rest %s %s: %w", method, url, err)
	}
	return resp, nil
}

func (r *REST) TileGet(ctx context.Context, t *tile.Tile) (cache.Entry, cache.Result, error) {
	resp, err := r.do(ctx, http.MethodGet, r.url(t), nil)
	if err != nil {
		return cache.Entry{}, cache.Miss, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return cache.Entry{}, cache.Miss, nil
	}
	if resp.StatusCode >= 300 {
		return cache.Entry{}, cache.Miss, fmt.Errorf("objectstore: rest get: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return cache.Entry{}, cache.Miss, fmt.Errorf("objectstore: rest read: %w", err)
	}

	e := cache.Entry{Data: data, Mtime: time.Now()}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if parsed, err := http.ParseTime(lm); err == nil {
			e.Mtime = parsed
		}
	}
	return e, cache.Hit, nil
}

func (r *REST) TileSet(ctx context.Context, t *tile.Tile, e cache.Entry) error {
	resp, err := r.do(ctx, http.MethodPut, r.url(t), e.Data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("objectstore: rest put: status %d", resp.StatusCode)
	}
	return nil
}

func (r *REST) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	resp, err := r.do(ctx, http.MethodHead, r.url(t), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode < 300, nil
}

func (r *REST) TileDelete(ctx context.Context, t *tile.Tile) error {
	resp, err := r.do(ctx, http.MethodDelete, r.url(t), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("objectstore: rest delete: status %d", resp.StatusCode)
	}
	return nil
}

// LegacyAWSSigner implements the pre-SigV4 AWS HMAC-SHA1 "Authorization:
// AWS key:signature" scheme original_source/lib/cache_rest.c falls back
// to for S3-compatible endpoints that predate SigV4.
type LegacyAWSSigner struct {
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

func (s *LegacyAWSSigner) Sign(req *http.Request, body []byte) error {
	date := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("Date", date)

	stringToSign := req.Method + "\n\n" + req.Header.Get("Content-Type") + "\n" + date + "\n" +
		"/" + s.Bucket + req.URL.Path

	mac := hmac.New(sha1.New, []byte(s.SecretAccessKey))
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", fmt.Sprintf("AWS %s:%s", s.AccessKeyID, signature))
	return nil
}
