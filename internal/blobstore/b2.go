package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Backblaze/blazer/b2"

	"visionary/internal/config"
)

// B2 stores blobs in a Backblaze B2 bucket.
type B2 struct {
	bucket *b2.Bucket
}

func NewB2(ctx context.Context, cfg config.B2Store) (*B2, error) {
	if cfg.AccountID == "" || cfg.AppKey == "" || cfg.Bucket == "" {
		return nil, errors.New("b2 account id, app key and bucket are required")
	}
	var opts []b2.ClientOption
	if cfg.APIBase != "" {
		opts = append(opts, b2.APIBase(cfg.APIBase))
	}
	client, err := b2.NewClient(ctx, cfg.AccountID, cfg.AppKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open b2 bucket %s: %w", cfg.Bucket, err)
	}
	return &B2{bucket: bucket}, nil
}

func (b *B2) Put(ctx context.Context, pathname string, body []byte, contentType string) (BlobInfo, error) {
	pathname, err := cleanPathname(pathname)
	if err != nil {
		return BlobInfo{}, err
	}
	obj := b.bucket.Object(pathname)
	w := obj.NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))
	if _, err := io.Copy(w, bytes.NewReader(body)); err != nil {
		w.Close()
		return BlobInfo{}, fmt.Errorf("b2 write %s: %w", pathname, err)
	}
	if err := w.Close(); err != nil {
		return BlobInfo{}, fmt.Errorf("b2 write %s: %w", pathname, err)
	}
	return BlobInfo{
		URL:         obj.URL(),
		Pathname:    pathname,
		ContentType: contentType,
		Size:        int64(len(body)),
		UploadedAt:  time.Now().UTC(),
	}, nil
}

func (b *B2) Close() error { return nil }
