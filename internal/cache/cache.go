package cache

import (
	"context"
	"time"
)

// Cache is a key/value store with per-entry expiry. Implementations must be
// safe for concurrent use; last-writer-wins on racing sets of the same key.
// Get returns (nil, nil) on a miss or an expired entry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
