package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by stores that have been closed.
var ErrClosed = errors.New("cache: store closed")

// Store is the shared key-value store holding serialized response bodies.
// Keys are canonical request paths, values are the stored JSON bytes.
// Entries expire after the TTL given on write; expired entries are reported
// as absent.
//
// Implementations must be thread-safe!
type Store interface {
	// Get returns the stored value for the given key, if it exists.
	// The boolean is false for absent and expired entries; that is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the value under the given key for the duration of ttl.
	// An existing entry is overwritten.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the entry for the given key.
	// Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every entry whose key starts with prefix.
	// The prefix is matched literally.
	DeletePrefix(ctx context.Context, prefix string) error
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}
