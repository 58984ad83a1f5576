package dedup

import (
	"context"

	"github.com/civiciq/civiciq/internal/domain"
)

// VectorPool is the storage contract for the candidate pool. Candidates
// covers vectors of original complaints only; duplicates never enter the
// pool, so chains cannot form.
type VectorPool interface {
	Candidates(ctx context.Context) ([]domain.VectorRecord, error)
	Put(ctx context.Context, rec domain.VectorRecord) error
}
