package blobstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"visionary/internal/config"
)

// GCS stores blobs in a Google Cloud Storage bucket.
type GCS struct {
	bucket        string
	publicBaseURL string
	client        *storage.Client
}

// NewGCS uses application default credentials unless a credentials file
// is configured. A custom endpoint targets an emulator without
// authentication.
func NewGCS(ctx context.Context, cfg config.GCSStore, publicBaseURL string) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{bucket: cfg.Bucket, publicBaseURL: publicBaseURL, client: client}, nil
}

func (g *GCS) Put(ctx context.Context, pathname string, body []byte, contentType string) (BlobInfo, error) {
	pathname, err := cleanPathname(pathname)
	if err != nil {
		return BlobInfo{}, err
	}
	w := g.client.Bucket(g.bucket).Object(pathname).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(body); err != nil {
		w.Close()
		return BlobInfo{}, fmt.Errorf("gcs write %s: %w", pathname, err)
	}
	if err := w.Close(); err != nil {
		return BlobInfo{}, fmt.Errorf("gcs write %s: %w", pathname, err)
	}

	attrs := w.Attrs()
	fallback := fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, pathname)
	return BlobInfo{
		URL:         publicURL(g.publicBaseURL, pathname, fallback),
		Pathname:    pathname,
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		UploadedAt:  attrs.Created.UTC(),
	}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
