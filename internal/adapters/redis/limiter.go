package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimiterStore holds the per-identity admission counters. Counting uses a
// pipelined INCR+EXPIRE so concurrent requests from one identity cannot lose
// updates; blocks are plain keys whose TTL doubles as the retry-after value.
type LimiterStore struct {
	client *redis.Client
}

func NewLimiterStore(client *redis.Client) *LimiterStore {
	return &LimiterStore{client: client}
}

func (s *LimiterStore) Hit(ctx context.Context, identity string, window time.Duration) (int64, error) {
	key := "rl:cnt:" + identity

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *LimiterStore) Block(ctx context.Context, identity string, d time.Duration) error {
	return s.client.Set(ctx, "rl:block:"+identity, 1, d).Err()
}

// BlockTTL returns the remaining block duration, or zero when the identity
// is not blocked.
func (s *LimiterStore) BlockTTL(ctx context.Context, identity string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, "rl:block:"+identity).Result()
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}
