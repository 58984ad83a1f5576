package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civiciq/civiciq/internal/domain"
)

// --- Mocks ---

type mockPool struct {
	candidates []domain.VectorRecord
	candErr    error
	stored     []domain.VectorRecord
	putErr     error
}

func (m *mockPool) Candidates(_ context.Context) ([]domain.VectorRecord, error) {
	return m.candidates, m.candErr
}

func (m *mockPool) Put(_ context.Context, rec domain.VectorRecord) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.stored = append(m.stored, rec)
	return nil
}

func rec(id string, vec []float32, createdAt time.Time) domain.VectorRecord {
	return domain.VectorRecord{ComplaintID: id, Vector: vec, CreatedAt: createdAt}
}

// --- FindDuplicate tests ---

func TestFindDuplicate_BestMatchAboveThreshold(t *testing.T) {
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	pool := &mockPool{candidates: []domain.VectorRecord{
		rec("far", []float32{0, 1, 0}, base),
		rec("near", []float32{1, 0.05, 0}, base),
	}}
	d := NewDetector(pool)

	m, err := d.FindDuplicate(context.Background(), []float32{1, 0, 0}, 0.85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.ComplaintID != "near" {
		t.Fatalf("match = %+v, want near", m)
	}
	if m.Similarity <= 0.85 {
		t.Errorf("Similarity = %v, want > 0.85", m.Similarity)
	}
}

func TestFindDuplicate_ThresholdIsStrict(t *testing.T) {
	// An exact threshold score must not count as a duplicate.
	pool := &mockPool{candidates: []domain.VectorRecord{
		rec("c1", []float32{1, 0}, time.Now()),
	}}
	d := NewDetector(pool)

	m, err := d.FindDuplicate(context.Background(), []float32{1, 0}, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("match = %+v, want nil at exact threshold", m)
	}
}

func TestFindDuplicate_NoCandidates(t *testing.T) {
	d := NewDetector(&mockPool{})
	m, err := d.FindDuplicate(context.Background(), []float32{1, 0}, 0.85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("match = %+v, want nil", m)
	}
}

func TestFindDuplicate_TieBreaksToEarliest(t *testing.T) {
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	// Same vector twice, so identical similarity; the older record wins.
	pool := &mockPool{candidates: []domain.VectorRecord{
		rec("younger", []float32{1, 0, 0}, base.Add(time.Hour)),
		rec("older", []float32{1, 0, 0}, base),
	}}
	d := NewDetector(pool)

	m, err := d.FindDuplicate(context.Background(), []float32{1, 0, 0}, 0.85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.ComplaintID != "older" {
		t.Fatalf("match = %+v, want older", m)
	}
}

func TestFindDuplicate_PoolError(t *testing.T) {
	poolErr := errors.New("redis down")
	d := NewDetector(&mockPool{candErr: poolErr})

	_, err := d.FindDuplicate(context.Background(), []float32{1, 0}, 0.85)
	if !errors.Is(err, poolErr) {
		t.Errorf("err = %v, want wrapped pool error", err)
	}
}

func TestStore(t *testing.T) {
	pool := &mockPool{}
	d := NewDetector(pool)

	r := rec("c1", []float32{1, 2}, time.Now())
	if err := d.Store(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.stored) != 1 || pool.stored[0].ComplaintID != "c1" {
		t.Errorf("stored = %+v", pool.stored)
	}
}

// --- Guard tests ---

func TestGuard_SerializesSameText(t *testing.T) {
	d := NewDetector(&mockPool{})

	release := d.Guard("Pothole   on Elm")
	acquired := make(chan struct{})
	go func() {
		// Normalized form matches, so this blocks until release.
		r := d.Guard("pothole on elm")
		r()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Guard acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Guard never acquired after release")
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize("  Broken   STREET  light \n"); got != "broken street light" {
		t.Errorf("normalize() = %q", got)
	}
}
