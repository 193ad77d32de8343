package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreGetDelConsumesOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "auth:refresh:abc", []byte("user-1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := s.GetDel(ctx, "auth:refresh:abc")
	if err != nil {
		t.Fatalf("GetDel failed: %v", err)
	}
	if string(val) != "user-1" {
		t.Fatalf("expected user-1, got %s", val)
	}

	if _, err := s.GetDel(ctx, "auth:refresh:abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second read, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	_ = s.Set(ctx, "k", []byte("v"), time.Second)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("expected key before expiry, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
