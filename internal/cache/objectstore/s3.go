package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/tile"
)

// S3 is the AWS S3 (and S3-compatible, via Endpoint) cache back-end,
// grounded on internal/storage/s3.go's NewS3Backend/Get/Put/Delete/Exists.
type S3 struct {
	client *s3.Client
	Bucket string

	// KeyTemplate overrides the default object-naming layout; see
	// objectKey.
	KeyTemplate string
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // for MinIO / other S3-compatible services
	KeyTemplate     string
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3{
		client:      s3.NewFromConfig(awsCfg, opts...),
		Bucket:      cfg.Bucket,
		KeyTemplate: cfg.KeyTemplate,
	}, nil
}

func (s *S3) Name() string { return "s3" }

func (s *S3) key(t *tile.Tile) string { return objectKey(s.KeyTemplate, t, tileFormat(t)) }

func (s *S3) TileGet(ctx context.Context, t *tile.Tile) (cache.Entry, cache.Result, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(t)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return cache.Entry{}, cache.Miss, nil
		}
		return cache.Entry{}, cache.Miss, fmt.Errorf("objectstore: s3 get: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return cache.Entry{}, cache.Miss, fmt.Errorf("objectstore: s3 read body: %w", err)
	}
	e := cache.Entry{Data: data}
	if out.LastModified != nil {
		e.Mtime = *out.LastModified
	}
	return e, cache.Hit, nil
}

func (s *S3) TileSet(ctx context.Context, t *tile.Tile, e cache.Entry) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(t)),
		Body:   bytes.NewReader(e.Data),
	})
	if err != nil {
		return fmt.Errorf("objectstore: s3 put: %w", err)
	}
	return nil
}

func (s *S3) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(t)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("objectstore: s3 head: %w", err)
	}
	return true, nil
}

func (s *S3) TileDelete(ctx context.Context, t *tile.Tile) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(t)),
	})
	if err != nil {
		return fmt.Errorf("objectstore: s3 delete: %w", err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
