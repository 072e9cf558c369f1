package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS blobs (
	pathname     TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	body         BLOB NOT NULL,
	size         INTEGER NOT NULL,
	uploaded_at  INTEGER NOT NULL
)`

// SQLite stores blobs as rows of a single table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, pathname string, body []byte, contentType string) (BlobInfo, error) {
	pathname, err := cleanPathname(pathname)
	if err != nil {
		return BlobInfo{}, err
	}
	uploadedAt := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO blobs (pathname, content_type, body, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pathname) DO UPDATE SET
			content_type = excluded.content_type,
			body = excluded.body,
			size = excluded.size,
			uploaded_at = excluded.uploaded_at
	`, pathname, contentType, body, len(body), uploadedAt.UnixMilli())
	if err != nil {
		return BlobInfo{}, fmt.Errorf("insert blob: %w", err)
	}
	return BlobInfo{
		URL:         "sqlite:///" + pathname,
		Pathname:    pathname,
		ContentType: contentType,
		Size:        int64(len(body)),
		UploadedAt:  uploadedAt,
	}, nil
}

// Get returns the stored body and content type for pathname.
func (s *SQLite) Get(ctx context.Context, pathname string) ([]byte, string, error) {
	var (
		body        []byte
		contentType string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, content_type FROM blobs WHERE pathname = ?`, pathname,
	).Scan(&body, &contentType)
	if err != nil {
		return nil, "", fmt.Errorf("query blob: %w", err)
	}
	return body, contentType, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
