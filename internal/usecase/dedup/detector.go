package dedup

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/civiciq/civiciq/internal/domain"
	"github.com/civiciq/civiciq/internal/metrics"
)

// lockBuckets shards the compare-and-insert critical section. Unrelated
// submissions proceed in parallel; two submissions whose normalized text
// hashes to the same bucket serialize, so they cannot both pass the
// comparison and both insert as originals.
const lockBuckets = 64

// Match identifies the original a new complaint duplicates.
type Match struct {
	ComplaintID string
	Similarity  float64
}

// Detector finds the nearest stored original for a new embedding.
type Detector struct {
	pool  VectorPool
	locks [lockBuckets]sync.Mutex
}

// NewDetector creates a duplicate detector over a vector pool.
func NewDetector(pool VectorPool) *Detector {
	return &Detector{pool: pool}
}

// Guard serializes the compare-and-insert sequence for a textual
// neighborhood. The returned release must be called once the new vector is
// stored (or the submission aborted).
func (d *Detector) Guard(text string) (release func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(text)))
	mu := &d.locks[h.Sum32()%lockBuckets]
	mu.Lock()
	return mu.Unlock
}

// FindDuplicate compares vec against every candidate and returns the best
// match strictly above threshold, or nil. Ties on similarity resolve to the
// earliest-created candidate for reproducible results.
func (d *Detector) FindDuplicate(ctx context.Context, vec []float32, threshold float64) (*Match, error) {
	candidates, err := d.pool.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	var best *domain.VectorRecord
	bestScore := 0.0

	for i := range candidates {
		c := &candidates[i]
		score := CosineSimilarity(vec, c.Vector)
		switch {
		case score > bestScore:
			best, bestScore = c, score
		case score == bestScore && best != nil && c.CreatedAt.Before(best.CreatedAt):
			best = c
		}
	}

	if best == nil || bestScore <= threshold {
		return nil, nil
	}

	metrics.DuplicatesDetectedTotal.Inc()
	return &Match{ComplaintID: best.ComplaintID, Similarity: bestScore}, nil
}

// Store adds an original's vector to the candidate pool for future
// comparisons. Must happen under the same Guard as the comparison.
func (d *Detector) Store(ctx context.Context, rec domain.VectorRecord) error {
	if err := d.pool.Put(ctx, rec); err != nil {
		return fmt.Errorf("store vector: %w", err)
	}
	return nil
}

// normalize collapses case and whitespace so trivially reworded resubmits
// land in the same lock bucket.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
