package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the key has never been written.
	ErrNotFound = errors.New("storage: key not found")
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// KV is the persistent key-value store backing alert rules and fire history.
// Values are opaque structured text.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}
