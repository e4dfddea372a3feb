// Package cachestore provides the bounded cache used for compiled output
// adapters and repeated adaptation results. Two backends exist: an
// in-process LRU with TTL and a Redis-backed store for deployments that
// share adapters across replicas.
package cachestore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("cachestore: key not found")

// ErrInvalidKey is returned for empty keys.
var ErrInvalidKey = errors.New("cachestore: invalid key")

// Store is a bounded key-value cache with TTL semantics.
type Store interface {
	// Get returns the cached bytes for a key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores bytes under a key, evicting old entries when full.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Len returns the current entry count.
	Len(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

const (
	defaultMaxEntries = 512
	defaultTTL        = time.Hour
)
