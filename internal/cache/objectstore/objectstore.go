// Package objectstore implements the cloud object-store cache back-ends
// of spec.md §4.2: S3, Azure Blob Storage, Google Cloud Storage, and a
// generic REST engine for S3-compatible endpoints that don't fit the
// AWS SDK's assumptions. Grounded on internal/storage's Backend family
// (storage.go, s3.go, azure.go, gcs.go) in the teacher repo, adapted from
// a generic blob store into mapcache's tile-addressed cache contract.
package objectstore

import (
	"github.com/arx-os/mapcache/internal/cachekey"
	"github.com/arx-os/mapcache/internal/tile"
)

// defaultKeyTemplate mirrors the teacher's flat "prefix/key" object
// naming, expanded through cachekey so two different grids or tilesets
// never collide in the same bucket.
const defaultKeyTemplate = "{tileset}/{grid}/{z}/{x}/{y}/{dim}.{ext}"

// objectKey builds the bucket key for t, using tmpl if non-empty or the
// default layout otherwise.
func objectKey(tmpl string, t *tile.Tile, ext string) string {
	if tmpl == "" {
		tmpl = defaultKeyTemplate
	}
	return cachekey.Expand(tmpl, t, ext)
}

func tileFormat(t *tile.Tile) string {
	if t.Image != nil && t.Image.Format != "" {
		return t.Image.Format
	}
	return "png"
}
