package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/civiciq/civiciq/internal/domain"
)

// store is the consumer interface for the vector pool (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores embedding vectors for original complaints in redis hashes.
// Only originals enter the pool; duplicates reference their parent's vector.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a vector pool repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

const (
	fieldVector    = "vector"
	fieldCreatedAt = "created_at"
)

// Put adds an original complaint's vector to the candidate pool.
func (r *Repo) Put(ctx context.Context, rec domain.VectorRecord) error {
	data, err := json.Marshal(rec.Vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}

	key := r.key(rec.ComplaintID)
	fields := map[string]string{
		fieldVector:    string(data),
		fieldCreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Candidates returns all stored vectors. The detector compares against every
// candidate, so correctness needs the full pool, not a nearest-neighbor cut.
func (r *Repo) Candidates(ctx context.Context) ([]domain.VectorRecord, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"vector:*")
	if err != nil {
		return nil, fmt.Errorf("scan vector pool: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch vector pool: %w", err)
	}

	records := make([]domain.VectorRecord, 0, len(hashes))
	for i, fields := range hashes {
		rec, err := parseRecord(r.complaintID(keys[i]), fields)
		if err != nil {
			// A malformed entry must not poison dedup for everyone.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Delete removes a complaint's vector from the pool.
func (r *Repo) Delete(ctx context.Context, complaintID string) error {
	if err := r.store.Del(ctx, r.key(complaintID)); err != nil {
		return fmt.Errorf("del vector %s: %w", complaintID, err)
	}
	return nil
}

func (r *Repo) key(complaintID string) string {
	return r.keyPrefix + "vector:" + complaintID
}

func (r *Repo) complaintID(key string) string {
	return strings.TrimPrefix(key, r.keyPrefix+"vector:")
}

func parseRecord(complaintID string, fields map[string]string) (domain.VectorRecord, error) {
	raw, ok := fields[fieldVector]
	if !ok || raw == "" {
		return domain.VectorRecord{}, fmt.Errorf("missing vector field")
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return domain.VectorRecord{}, fmt.Errorf("unmarshal vector: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return domain.VectorRecord{}, fmt.Errorf("parse created_at: %w", err)
	}

	return domain.VectorRecord{
		ComplaintID: complaintID,
		Vector:      vec,
		CreatedAt:   createdAt,
	}, nil
}
