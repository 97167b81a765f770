package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-churiwal/admission-gateway/internal/storage"
)

// RedisCounterStore is the shared CounterStore, one atomic Redis
// round-trip per increment. Counters are shared across all gateway
// instances pointed at the same Redis.
type RedisCounterStore struct {
	redis *storage.RedisClient
}

var _ CounterStore = (*RedisCounterStore)(nil)

func NewRedisCounterStore(redis *storage.RedisClient) *RedisCounterStore {
	return &RedisCounterStore{redis: redis}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.redis.IncrWithTTL(ctx, key, ttl)
	if err != nil {
		// Transport failures become ErrStoreUnavailable so the
		// policy's fail mode decides, not the caller's error path.
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return count, nil
}
