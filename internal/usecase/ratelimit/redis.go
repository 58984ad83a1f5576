package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civiciq/civiciq/internal/db"
	"github.com/civiciq/civiciq/internal/domain"
)

// windowStore is the consumer interface for the distributed rolling window (ISP).
type windowStore interface {
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRemRangeByScore(ctx context.Context, key string, max float64) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]db.ZMember, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// RedisLimiter shares the rolling admission window across instances. Each
// admission is a sorted-set member scored by its timestamp; expired
// timestamps are pruned before counting, so the window slides exactly like
// the in-memory limiter's.
type RedisLimiter struct {
	store     windowStore
	keyPrefix string
}

// NewRedisLimiter creates a redis-backed rolling-window limiter.
func NewRedisLimiter(store windowStore, keyPrefix string) *RedisLimiter {
	return &RedisLimiter{store: store, keyPrefix: keyPrefix}
}

// Admit prunes timestamps older than the window, rejects when the remaining
// count has reached the limit, and records the new timestamp otherwise.
func (l *RedisLimiter) Admit(ctx context.Context, identity string, limit int, window time.Duration, now time.Time) error {
	if limit <= 0 {
		return nil
	}

	key := l.keyPrefix + "ratelimit:" + identity

	cutoff := float64(now.Add(-window).UnixMilli())
	if err := l.store.ZRemRangeByScore(ctx, key, cutoff); err != nil {
		return fmt.Errorf("rate limit prune: %w", err)
	}

	n, err := l.store.ZCard(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limit count: %w", err)
	}
	if n >= int64(limit) {
		// Oldest in-window timestamp leaves the window first.
		retryAfter := window
		if members, err := l.store.ZRangeWithScores(ctx, key, 0, 0); err == nil && len(members) > 0 {
			oldest := time.UnixMilli(int64(members[0].Score))
			if d := oldest.Add(window).Sub(now); d > 0 {
				retryAfter = d
			}
		}
		return &domain.RateLimitError{
			Limit:      limit,
			Window:     window,
			RetryAfter: retryAfter,
		}
	}

	if err := l.store.ZAdd(ctx, key, float64(now.UnixMilli()), uuid.NewString()); err != nil {
		return fmt.Errorf("rate limit record: %w", err)
	}
	// Idle identities drop out of redis one window after their last admit.
	if err := l.store.Expire(ctx, key, window, false); err != nil {
		return fmt.Errorf("rate limit expiry: %w", err)
	}
	return nil
}
