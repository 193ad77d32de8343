package qart

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDiskStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewDiskStore(t.TempDir())
	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}

	key := ProgramArtifactKey("abc")
	art, err := store.Upload(ctx, key, strings.NewReader("tar-bytes"), -1, "application/x-tar")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if art.Size != int64(len("tar-bytes")) || art.Key != "programs/abc/artifact.tar" {
		t.Fatalf("unexpected artifact %+v", art)
	}

	// same key replaces the blob
	if _, err := store.Upload(ctx, key, strings.NewReader("v2"), -1, "application/x-tar"); err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	rc, err := store.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "v2" {
		t.Fatalf("expected replaced content, got %q", body)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Download(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDiskStoreRejectsTraversal(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	_, err := store.Upload(context.Background(), "../outside", strings.NewReader("x"), -1, "")
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got %v", err)
	}
}
