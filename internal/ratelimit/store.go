package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is returned by a CounterStore when the backing
// store cannot be reached. Policies translate it into their configured
// fail mode; it never propagates past Apply.
var ErrStoreUnavailable = errors.New("counter store unavailable")

// CounterStore is a shared atomic counter with per-key expiry.
//
// Increment must be atomic: concurrent increments on the same key never
// lose an update. The TTL is applied only on the increment that creates
// the key, so a window is never silently extended by later traffic.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
