package store

import (
	"context"
	"time"
)

// Counter is the storage contract for window counters. Implementations must
// make IncrementAndGet atomic per key: concurrent callers for one key observe
// a strictly increasing sequence with no duplicates and no gaps. Nothing is
// guaranteed across different keys.
type Counter interface {
	// IncrementAndGet creates the counter at 1 if absent, otherwise increments
	// it, and returns the post-increment value. The entry expires after ttl.
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Peek returns the current value without modifying it, 0 if the key is
	// absent or expired.
	Peek(ctx context.Context, key string) (int64, error)

	// Reset removes the counter for a key.
	Reset(ctx context.Context, key string) error
}
