package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/civiciq/civiciq/internal/domain"
)

func TestMemoryLimiter_AdmitsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := l.Admit(context.Background(), "user-1", 5, time.Hour, now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("submission %d rejected: %v", i+1, err)
		}
	}

	err := l.Admit(context.Background(), "user-1", 5, time.Hour, now.Add(5*time.Minute))
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("sixth submission: err = %v, want ErrRateLimited", err)
	}
}

func TestMemoryLimiter_RetryAfterTracksOldest(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if err := l.Admit(context.Background(), "user-1", 2, time.Hour, now.Add(time.Duration(i)*10*time.Minute)); err != nil {
			t.Fatalf("unexpected rejection: %v", err)
		}
	}

	err := l.Admit(context.Background(), "user-1", 2, time.Hour, now.Add(30*time.Minute))
	var rle *domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("err = %v, want *RateLimitError", err)
	}
	// Oldest entry is at t=0, window is 1h, now is t+30m.
	if rle.RetryAfter != 30*time.Minute {
		t.Errorf("RetryAfter = %v, want 30m", rle.RetryAfter)
	}
	if rle.Limit != 2 || rle.Window != time.Hour {
		t.Errorf("Limit/Window = %d/%v", rle.Limit, rle.Window)
	}
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := l.Admit(context.Background(), "user-1", 3, time.Hour, now); err != nil {
			t.Fatalf("unexpected rejection: %v", err)
		}
	}
	if err := l.Admit(context.Background(), "user-1", 3, time.Hour, now.Add(time.Minute)); err == nil {
		t.Fatal("expected rejection inside window")
	}

	// Just past the window the old entries expire.
	if err := l.Admit(context.Background(), "user-1", 3, time.Hour, now.Add(time.Hour+time.Second)); err != nil {
		t.Fatalf("expected admission after window: %v", err)
	}
}

func TestMemoryLimiter_IdentitiesAreIndependent(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Now()

	if err := l.Admit(context.Background(), "user-1", 1, time.Hour, now); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if err := l.Admit(context.Background(), "user-2", 1, time.Hour, now); err != nil {
		t.Fatalf("user-2 should not share user-1's counter: %v", err)
	}
}

func TestMemoryLimiter_ZeroLimitDisables(t *testing.T) {
	l := NewMemoryLimiter()
	for i := 0; i < 100; i++ {
		if err := l.Admit(context.Background(), "user-1", 0, time.Hour, time.Now()); err != nil {
			t.Fatalf("unexpected rejection: %v", err)
		}
	}
}

func TestMemoryLimiter_ConcurrentAdmitNeverOverAdmits(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Now()

	const attempts = 50
	const limit = 5

	var wg sync.WaitGroup
	admitted := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Admit(context.Background(), "user-1", limit, time.Hour, now); err == nil {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	if count != limit {
		t.Errorf("admitted %d, want exactly %d", count, limit)
	}
}

func TestMemoryLimiter_Purge(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Now()

	_ = l.Admit(context.Background(), "stale", 5, time.Hour, now.Add(-2*time.Hour))
	_ = l.Admit(context.Background(), "live", 5, time.Hour, now)

	l.Purge(time.Hour, now)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries["stale"]; ok {
		t.Error("stale identity not purged")
	}
	if _, ok := l.entries["live"]; !ok {
		t.Error("live identity purged")
	}
}
