package core

import (
	"context"
	"fmt"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	// IncrementAndCheck counts one request for key and reports whether it
	// fits within limit for the current window.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimitResult is the outcome of one IncrementAndCheck call.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// LimiterStore is a RateLimitStore backed by a ulule/limiter store. The
// in-process memory store is enough for a single replica.
type LimiterStore struct {
	store limiter.Store
}

var _ RateLimitStore = (*LimiterStore)(nil)

// NewMemoryRateLimitStore returns a store that keeps counters in memory.
func NewMemoryRateLimitStore() *LimiterStore {
	return &LimiterStore{store: memory.NewStore()}
}

// NewLimiterStore wraps any ulule/limiter store driver.
func NewLimiterStore(store limiter.Store) *LimiterStore {
	return &LimiterStore{store: store}
}

// IncrementAndCheck implements RateLimitStore.
func (s *LimiterStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	rate := limiter.Rate{Period: window, Limit: int64(limit)}

	lctx, err := s.store.Get(ctx, key, rate)
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit store: %w", err)
	}

	return RateLimitResult{
		Allowed:   !lctx.Reached,
		Remaining: int(lctx.Remaining),
		ResetAt:   time.Unix(lctx.Reset, 0),
	}, nil
}
