package rateLimit

import (
	"context"
	"testing"
	"time"
)

// fakeStore counts hits in memory and lets tests control block expiry.
type fakeStore struct {
	counts  map[string]int64
	blocked map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{counts: make(map[string]int64), blocked: make(map[string]time.Duration)}
}

func (s *fakeStore) Hit(ctx context.Context, identity string, window time.Duration) (int64, error) {
	s.counts[identity]++
	return s.counts[identity], nil
}

func (s *fakeStore) Block(ctx context.Context, identity string, d time.Duration) error {
	s.blocked[identity] = d
	return nil
}

func (s *fakeStore) BlockTTL(ctx context.Context, identity string) (time.Duration, error) {
	return s.blocked[identity], nil
}

func TestRateLimiter_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	rl := NewRateLimiter(store, 3, time.Hour, 10*time.Minute)

	for i := 0; i < 3; i++ {
		d, err := rl.Allow(ctx, "user:alice")
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	d, err := rl.Allow(ctx, "user:alice")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("4th request should be rejected")
	}
	if d.RetryAfter != 10*time.Minute {
		t.Errorf("expected retry-after of the block duration, got %v", d.RetryAfter)
	}
}

func TestRateLimiter_BlockOutlivesWindow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	rl := NewRateLimiter(store, 1, time.Hour, 10*time.Minute)

	if d, _ := rl.Allow(ctx, "user:bob"); !d.Allowed {
		t.Fatal("first request should pass")
	}
	if d, _ := rl.Allow(ctx, "user:bob"); d.Allowed {
		t.Fatal("second request should be blocked")
	}

	// Counter reset does not lift the block.
	store.counts["user:bob"] = 0
	d, _ := rl.Allow(ctx, "user:bob")
	if d.Allowed {
		t.Fatal("blocked identity must stay rejected until the block expires")
	}
	if d.RetryAfter <= 0 {
		t.Error("rejection while blocked must carry a retry-after")
	}

	// Block expiry restores admission.
	delete(store.blocked, "user:bob")
	if d, _ := rl.Allow(ctx, "user:bob"); !d.Allowed {
		t.Fatal("request after block expiry should pass")
	}
}

func TestRateLimiter_IdentitiesIndependent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	rl := NewRateLimiter(store, 1, time.Hour, 10*time.Minute)

	if d, _ := rl.Allow(ctx, "user:carol"); !d.Allowed {
		t.Fatal("carol's first request should pass")
	}
	if d, _ := rl.Allow(ctx, "user:carol"); d.Allowed {
		t.Fatal("carol's second request should be blocked")
	}
	if d, _ := rl.Allow(ctx, "user:dave"); !d.Allowed {
		t.Fatal("dave must not be affected by carol's block")
	}
}
