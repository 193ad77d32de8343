// Package kv is the key-value store behind refresh tokens. Valkey in
// production, an in-process map for development and tests.
package kv

import (
	"context"
	"time"
)

// Store is a minimal byte-valued key-value interface with TTLs.
type Store interface {
	// Set stores a value with the given key and TTL. A zero TTL never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetDel reads and removes a key in one step, so a value can be consumed
	// at most once. Returns ErrNotFound if the key does not exist.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}
