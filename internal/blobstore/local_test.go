package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalPutWritesFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := NewLocal(base, "")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	info, err := store.Put(context.Background(), "transcripts/session-1.json", []byte(`{"a":1}`), "application/json")
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if info.Pathname != "transcripts/session-1.json" {
		t.Fatalf("unexpected pathname: %q", info.Pathname)
	}
	if info.Size != 7 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !strings.HasPrefix(info.URL, "file://") {
		t.Fatalf("expected file url, got %q", info.URL)
	}
	if info.UploadedAt.IsZero() {
		t.Fatalf("expected upload time")
	}

	data, err := os.ReadFile(filepath.Join(base, "transcripts", "session-1.json"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestLocalPutOverwrites(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, _ := NewLocal(base, "")
	ctx := context.Background()
	if _, err := store.Put(ctx, "a.txt", []byte("first"), "text/plain"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if _, err := store.Put(ctx, "a.txt", []byte("second"), "text/plain"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(base, "a.txt"))
	if string(data) != "second" {
		t.Fatalf("expected overwrite, got %q", data)
	}

	entries, _ := os.ReadDir(base)
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, got %d entries", len(entries))
	}
}

func TestLocalPutPublicURL(t *testing.T) {
	t.Parallel()

	store, _ := NewLocal(t.TempDir(), "https://cdn.example.com/")
	info, err := store.Put(context.Background(), "/transcripts/x.json", []byte("{}"), "application/json")
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if info.URL != "https://cdn.example.com/transcripts/x.json" {
		t.Fatalf("unexpected url: %q", info.URL)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, _ := NewLocal(t.TempDir(), "")
	if _, err := store.Put(context.Background(), "../escape.json", []byte("{}"), "application/json"); err == nil {
		t.Fatalf("expected traversal error")
	}
	if _, err := store.Put(context.Background(), "  ", []byte("{}"), "application/json"); err == nil {
		t.Fatalf("expected empty pathname error")
	}
}

func TestNewLocalRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := NewLocal("", ""); err == nil {
		t.Fatalf("expected base path error")
	}
}
