// Package store provides the persistent secure key/value store used for
// tokens, cache entries, favorites, and the pending-request queue. Values are
// opaque byte slices; keys form a flat logical namespace.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("store: key not found")

// Store defines the interface for secure storage backends. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get retrieves the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the value for key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Keys lists all keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
