package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/tile"
)

// GCS is the Google Cloud Storage cache back-end, grounded on
// internal/storage/gcs.go's NewGCSBackend/Get/Put/Delete.
type GCS struct {
	bucket      *storage.BucketHandle
	KeyTemplate string
}

type GCSConfig struct {
	BucketName      string
	CredentialsFile string
	KeyTemplate     string
}

func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: gcs client: %w", err)
	}
	bucket := client.Bucket(cfg.BucketName)
	if _, err := bucket.Attrs(ctx); err != nil {
		return nil, fmt.Errorf("objectstore: gcs bucket %s: %w", cfg.BucketName, err)
	}
	return &GCS{bucket: bucket, KeyTemplate: cfg.KeyTemplate}, nil
}

func (g *GCS) Name() string { return "google" }

func (g *GCS) key(t *tile.Tile) string { return objectKey(g.KeyTemplate, t, tileFormat(t)) }

func (g *GCS) TileGet(ctx context.Context, t *tile.Tile) (cache.Entry, cache.Result, error) {
	obj := g.bucket.Object(g.key(t))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return cache.Entry{}, cache.Miss, nil
		}
		return cache.Entry{}, cache.Miss, fmt.Errorf("objectstore: gcs get: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return cache.Entry{}, cache.Miss, fmt.Errorf("objectstore: gcs read: %w", err)
	}
	return cache.Entry{Data: data, Mtime: reader.Attrs.LastModified}, cache.Hit, nil
}

func (g *GCS) TileSet(ctx context.Context, t *tile.Tile, e cache.Entry) error {
	w := g.bucket.Object(g.key(t)).NewWriter(ctx)
	if _, err := w.Write(e.Data); err != nil {
		w.Close()
		return fmt.Errorf("objectstore: gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("objectstore: gcs close: %w", err)
	}
	return nil
}

func (g *GCS) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	_, err := g.bucket.Object(g.key(t)).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("objectstore: gcs attrs: %w", err)
	}
	return true, nil
}

func (g *GCS) TileDelete(ctx context.Context, t *tile.Tile) error {
	err := g.bucket.Object(g.key(t)).Delete(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("objectstore: gcs delete: %w", err)
	}
	return nil
}
