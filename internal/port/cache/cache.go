// Package cache defines the port interface for byte-value caching, used as
// a read-through cache in front of workspace file content lookups.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching. Implementations are
// free to evict at any time; callers must treat a miss as authoritative
// absence from the cache only, never from the backing store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
