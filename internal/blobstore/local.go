package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Local stores blobs on a local or mounted filesystem.
type Local struct {
	basePath      string
	publicBaseURL string
}

// NewLocal creates a Local store rooted at basePath.
func NewLocal(basePath, publicBaseURL string) (*Local, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("local store base path is required")
	}
	return &Local{basePath: filepath.Clean(basePath), publicBaseURL: publicBaseURL}, nil
}

func (l *Local) Put(_ context.Context, pathname string, body []byte, contentType string) (BlobInfo, error) {
	pathname, err := cleanPathname(pathname)
	if err != nil {
		return BlobInfo{}, err
	}
	dest, err := containedPath(l.basePath, pathname)
	if err != nil {
		return BlobInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return BlobInfo{}, fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".blob-*")
	if err != nil {
		return BlobInfo{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return BlobInfo{}, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return BlobInfo{}, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return BlobInfo{}, fmt.Errorf("failed to commit blob: %w", err)
	}

	fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}).String()
	return BlobInfo{
		URL:         publicURL(l.publicBaseURL, pathname, fileURL),
		Pathname:    pathname,
		ContentType: contentType,
		Size:        int64(len(body)),
		UploadedAt:  time.Now().UTC(),
	}, nil
}

func (l *Local) Close() error { return nil }

// containedPath ensures that the resolved path stays within basePath.
func containedPath(basePath, untrustedPath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absJoined, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(untrustedPath)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absJoined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q resolves outside base %q", untrustedPath, absBase)
	}
	return absJoined, nil
}
