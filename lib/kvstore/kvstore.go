package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for keys that were never set or have
// been removed.
var ErrNotFound = errors.New("key not found")

// Store is the persistence capability injected into the roster cache
// and anything else that needs durable key-value state. Implementations
// may be backed by anything; callers only rely on these four methods.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
