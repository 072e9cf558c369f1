package blobstore

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLitePutAndGet(t *testing.T) {
	t.Parallel()

	store, err := NewSQLite(filepath.Join(t.TempDir(), "blobs.sqlite"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	info, err := store.Put(ctx, "transcripts/session-5.json", []byte("[1]"), "application/json")
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if info.URL != "sqlite:///transcripts/session-5.json" || info.Size != 3 {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := store.Put(ctx, "transcripts/session-5.json", []byte("[1,2]"), "text/plain"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	body, contentType, err := store.Get(ctx, "transcripts/session-5.json")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(body) != "[1,2]" || contentType != "text/plain" {
		t.Fatalf("unexpected row: %q %q", body, contentType)
	}
}

func TestSQLiteInMemory(t *testing.T) {
	t.Parallel()

	store, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer store.Close()

	if _, err := store.Put(context.Background(), "a", []byte("x"), "text/plain"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if _, _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Fatalf("expected missing row error")
	}
}

func TestNewSQLiteRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := NewSQLite(""); err == nil {
		t.Fatalf("expected path error")
	}
}
