package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"visionary/internal/config"
	"visionary/internal/metrics"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	URL         string    `json:"url"`
	Pathname    string    `json:"pathname"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Store writes whole objects under a slash-separated pathname. A Put to an
// existing pathname replaces it.
type Store interface {
	Put(ctx context.Context, pathname string, body []byte, contentType string) (BlobInfo, error)
	Close() error
}

var errEmptyPathname = errors.New("blob pathname is required")

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", "local":
		backend = "local"
		store, err = NewLocal(cfg.Local.Path, cfg.PublicBaseURL)
	case "s3":
		store, err = NewS3(ctx, cfg.S3, cfg.PublicBaseURL)
	case "gcs":
		store, err = NewGCS(ctx, cfg.GCS, cfg.PublicBaseURL)
	case "azure":
		store, err = NewAzure(cfg.Azure, cfg.PublicBaseURL)
	case "b2":
		store, err = NewB2(ctx, cfg.B2)
	case "sqlite":
		store, err = NewSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown blob store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s blob store: %w", backend, err)
	}
	return &instrumented{backend: backend, next: store}, nil
}

type instrumented struct {
	backend string
	next    Store
}

func (s *instrumented) Put(ctx context.Context, pathname string, body []byte, contentType string) (BlobInfo, error) {
	started := time.Now()
	info, err := s.next.Put(ctx, pathname, body, contentType)
	metrics.BlobPutDuration.WithLabelValues(s.backend).Observe(time.Since(started).Seconds())
	return info, err
}

func (s *instrumented) Close() error {
	return s.next.Close()
}

// publicURL joins base and pathname, or returns fallback when base is empty.
func publicURL(base, pathname, fallback string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return fallback
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(pathname, "/")
}

func cleanPathname(pathname string) (string, error) {
	pathname = strings.TrimPrefix(strings.TrimSpace(pathname), "/")
	if pathname == "" {
		return "", errEmptyPathname
	}
	return pathname, nil
}
