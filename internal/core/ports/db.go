package ports

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Store.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// StoreChange describes a mutation of a key. NewValue is nil for removals.
type StoreChange struct {
	Key      string
	OldValue []byte
	NewValue []byte
}

// Store is the async key/value store surviving process restarts. Values are
// opaque bytes, the wallet state is stored JSON-encoded.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Subscribe registers a handler invoked after every committed change.
	// Handlers run synchronously in the writer's goroutine, after the store
	// released its locks, so they may write to the store again.
	Subscribe(handler func(StoreChange)) (unsubscribe func())
	Close() error
}
