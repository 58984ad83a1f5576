package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/civiciq/civiciq/internal/domain"
)

// Limiter is the admission-control contract. Implementations must be safe
// under concurrent calls for the same identity. A rejection is always a
// *domain.RateLimitError carrying the retry-after duration.
type Limiter interface {
	Admit(ctx context.Context, identity string, limit int, window time.Duration, now time.Time) error
}

// MemoryLimiter tracks a rolling window of submission timestamps per
// identity. State is process-local; counters reset on restart, which is
// accepted for single-instance deployments (use RedisLimiter otherwise).
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewMemoryLimiter creates an in-memory sliding-window limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{entries: make(map[string][]time.Time)}
}

// Admit checks the identity's submission count within the rolling window and
// records the new timestamp on admission. Expired timestamps are purged
// lazily on each access.
func (l *MemoryLimiter) Admit(_ context.Context, identity string, limit int, window time.Duration, now time.Time) error {
	if limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-window)
	kept := l.entries[identity][:0]
	for _, t := range l.entries[identity] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		l.entries[identity] = kept
		// Oldest in-window timestamp leaves the window first.
		return &domain.RateLimitError{
			Limit:      limit,
			Window:     window,
			RetryAfter: kept[0].Add(window).Sub(now),
		}
	}

	l.entries[identity] = append(kept, now)
	return nil
}

// Purge drops identities whose entire window has expired. Optional; Admit
// already prunes lazily, this only bounds memory for one-shot identities.
func (l *MemoryLimiter) Purge(window time.Duration, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-window)
	for id, stamps := range l.entries {
		live := false
		for _, t := range stamps {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.entries, id)
		}
	}
}
