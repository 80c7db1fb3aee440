// Package cache provides the shared key/value store with TTL used for
// AI response caching and verification codes. Two interchangeable
// implementations exist: Memory (process-local) and Redis (shared).
// The choice is made once at construction; callers treat store errors
// as cache misses and never fail a request on them.
package cache

import (
	"context"
	"time"
)

// Store is the cache capability. Values are opaque serialized payloads,
// immutable once written; keys are content-derived.
type Store interface {
	// Get returns the value for key, or found=false when the key is
	// absent or its TTL has elapsed. Expired entries are never served.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key for ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
