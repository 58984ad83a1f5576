package ratelimit

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/civiciq/civiciq/internal/db"
	"github.com/civiciq/civiciq/internal/domain"
)

// --- Mocks ---

// mockWindowStore keeps sorted sets in memory with redis semantics.
type mockWindowStore struct {
	sets      map[string][]db.ZMember
	ttls      map[string]time.Duration
	addErr    error
	remErr    error
	cardErr   error
	rangeErr  error
	expireErr error
}

func newMockWindowStore() *mockWindowStore {
	return &mockWindowStore{
		sets: make(map[string][]db.ZMember),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockWindowStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.sets[key] = append(m.sets[key], db.ZMember{Member: member, Score: score})
	sort.Slice(m.sets[key], func(i, j int) bool { return m.sets[key][i].Score < m.sets[key][j].Score })
	return nil
}

func (m *mockWindowStore) ZRemRangeByScore(_ context.Context, key string, max float64) error {
	if m.remErr != nil {
		return m.remErr
	}
	kept := m.sets[key][:0]
	for _, z := range m.sets[key] {
		if z.Score > max {
			kept = append(kept, z)
		}
	}
	m.sets[key] = kept
	return nil
}

func (m *mockWindowStore) ZCard(_ context.Context, key string) (int64, error) {
	if m.cardErr != nil {
		return 0, m.cardErr
	}
	return int64(len(m.sets[key])), nil
}

func (m *mockWindowStore) ZRangeWithScores(_ context.Context, key string, start, stop int64) ([]db.ZMember, error) {
	if m.rangeErr != nil {
		return nil, m.rangeErr
	}
	set := m.sets[key]
	if start >= int64(len(set)) {
		return nil, nil
	}
	if stop >= int64(len(set)) {
		stop = int64(len(set)) - 1
	}
	return set[start : stop+1], nil
}

func (m *mockWindowStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	if m.expireErr != nil {
		return m.expireErr
	}
	if _, set := m.ttls[key]; nx && set {
		return nil
	}
	m.ttls[key] = ttl
	return nil
}

// --- Tests ---

// testClock has no sub-millisecond part, matching the stored score precision.
var testClock = time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)

func TestRedisLimiter_AdmitsUpToLimit(t *testing.T) {
	store := newMockWindowStore()
	l := NewRedisLimiter(store, "civiciq:")
	now := testClock

	for i := 0; i < 5; i++ {
		if err := l.Admit(context.Background(), "user-1", 5, time.Hour, now); err != nil {
			t.Fatalf("submission %d rejected: %v", i+1, err)
		}
	}

	err := l.Admit(context.Background(), "user-1", 5, time.Hour, now)
	var rle *domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("sixth submission: err = %v, want *RateLimitError", err)
	}
	if rle.RetryAfter != time.Hour {
		t.Errorf("RetryAfter = %v, want full window for same-instant admissions", rle.RetryAfter)
	}
}

func TestRedisLimiter_WindowRolls(t *testing.T) {
	store := newMockWindowStore()
	l := NewRedisLimiter(store, "civiciq:")
	start := testClock

	// One admission early, four late in the hour.
	if err := l.Admit(context.Background(), "user-1", 5, time.Hour, start); err != nil {
		t.Fatalf("first submission rejected: %v", err)
	}
	at59 := start.Add(59 * time.Minute)
	for i := 0; i < 4; i++ {
		if err := l.Admit(context.Background(), "user-1", 5, time.Hour, at59); err != nil {
			t.Fatalf("submission at 59m rejected: %v", err)
		}
	}

	// Past the hour only the first admission has rolled out of the window,
	// so exactly one slot is free.
	at61 := start.Add(61 * time.Minute)
	if err := l.Admit(context.Background(), "user-1", 5, time.Hour, at61); err != nil {
		t.Fatalf("submission at 61m rejected: %v", err)
	}
	err := l.Admit(context.Background(), "user-1", 5, time.Hour, at61)
	var rle *domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("over-cap submission at 61m: err = %v, want *RateLimitError", err)
	}
	if want := 58 * time.Minute; rle.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v until the 59m batch rolls out", rle.RetryAfter, want)
	}
}

func TestRedisLimiter_RejectionNotRecorded(t *testing.T) {
	store := newMockWindowStore()
	l := NewRedisLimiter(store, "civiciq:")
	now := time.Now()

	for i := 0; i < 2; i++ {
		if err := l.Admit(context.Background(), "user-1", 2, time.Hour, now); err != nil {
			t.Fatalf("submission %d rejected: %v", i+1, err)
		}
	}
	_ = l.Admit(context.Background(), "user-1", 2, time.Hour, now)
	_ = l.Admit(context.Background(), "user-1", 2, time.Hour, now)

	if got := len(store.sets["civiciq:ratelimit:user-1"]); got != 2 {
		t.Errorf("stored timestamps = %d, want 2 (rejections leave no trace)", got)
	}
}

func TestRedisLimiter_IdentitiesIndependent(t *testing.T) {
	store := newMockWindowStore()
	l := NewRedisLimiter(store, "civiciq:")
	now := time.Now()

	for i := 0; i < 5; i++ {
		if err := l.Admit(context.Background(), "user-1", 5, time.Hour, now); err != nil {
			t.Fatalf("user-1 submission rejected: %v", err)
		}
	}
	if err := l.Admit(context.Background(), "user-2", 5, time.Hour, now); err != nil {
		t.Errorf("user-2 must not share user-1's window: %v", err)
	}
}

func TestRedisLimiter_ExpiryRefreshedOnAdmit(t *testing.T) {
	store := newMockWindowStore()
	l := NewRedisLimiter(store, "civiciq:")
	now := time.Now()

	_ = l.Admit(context.Background(), "user-1", 5, time.Hour, now)
	store.ttls["civiciq:ratelimit:user-1"] = 10 * time.Minute
	_ = l.Admit(context.Background(), "user-1", 5, time.Hour, now.Add(30*time.Minute))

	// The key must outlive the newest timestamp's window, so every
	// admission pushes the TTL back to a full window.
	if got := store.ttls["civiciq:ratelimit:user-1"]; got != time.Hour {
		t.Errorf("ttl = %v, want full window refresh", got)
	}
}

func TestRedisLimiter_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := newMockWindowStore()
	store.remErr = storeErr
	l := NewRedisLimiter(store, "civiciq:")

	err := l.Admit(context.Background(), "user-1", 5, time.Hour, time.Now())
	if !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
	if errors.Is(err, domain.ErrRateLimited) {
		t.Error("infrastructure failure must not map to ErrRateLimited")
	}
}

func TestRedisLimiter_RangeErrorFallsBackToWindow(t *testing.T) {
	store := newMockWindowStore()
	l := NewRedisLimiter(store, "civiciq:")
	now := testClock

	for i := 0; i < 5; i++ {
		if err := l.Admit(context.Background(), "user-1", 5, 30*time.Minute, now); err != nil {
			t.Fatalf("submission %d rejected: %v", i+1, err)
		}
	}
	store.rangeErr = errors.New("range unavailable")

	err := l.Admit(context.Background(), "user-1", 5, 30*time.Minute, now)
	var rle *domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("err = %v, want *RateLimitError", err)
	}
	if rle.RetryAfter != 30*time.Minute {
		t.Errorf("RetryAfter = %v, want full window fallback", rle.RetryAfter)
	}
}

func TestRedisLimiter_ZeroLimitDisables(t *testing.T) {
	l := NewRedisLimiter(newMockWindowStore(), "civiciq:")
	if err := l.Admit(context.Background(), "user-1", 0, time.Hour, time.Now()); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}
