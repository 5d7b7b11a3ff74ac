package rateLimit

import (
	"context"
	"time"
)

// Store is the counter backend. The redis adapter implements it; tests use
// an in-memory fake. Hit must be atomic under concurrent calls for one
// identity.
type Store interface {
	Hit(ctx context.Context, identity string, window time.Duration) (int64, error)
	Block(ctx context.Context, identity string, d time.Duration) error
	BlockTTL(ctx context.Context, identity string) (time.Duration, error)
}

// Decision distinguishes "rate limited" from every other failure so callers
// can surface 429 with a Retry-After instead of a generic error.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type RateLimiter struct {
	store    Store
	quota    int
	window   time.Duration
	blockFor time.Duration
}

func NewRateLimiter(store Store, quota int, window, blockFor time.Duration) *RateLimiter {
	return &RateLimiter{store: store, quota: quota, window: window, blockFor: blockFor}
}

// Allow admits or rejects one request for the identity. Once the quota is
// exceeded a block is set; while it lasts every request is rejected with the
// remaining block duration, regardless of the counting window resetting.
func (rl *RateLimiter) Allow(ctx context.Context, identity string) (Decision, error) {
	ttl, err := rl.store.BlockTTL(ctx, identity)
	if err != nil {
		return Decision{}, err
	}
	if ttl > 0 {
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}

	count, err := rl.store.Hit(ctx, identity, rl.window)
	if err != nil {
		return Decision{}, err
	}
	if count > int64(rl.quota) {
		if err := rl.store.Block(ctx, identity, rl.blockFor); err != nil {
			return Decision{}, err
		}
		return Decision{Allowed: false, RetryAfter: rl.blockFor}, nil
	}

	return Decision{Allowed: true}, nil
}
