package intake

import (
	"context"
	"time"

	"github.com/civiciq/civiciq/internal/config"
	"github.com/civiciq/civiciq/internal/domain"
	"github.com/civiciq/civiciq/internal/usecase/dedup"
)

// Admitter gates pipeline entry per submitter identity.
type Admitter interface {
	Admit(ctx context.Context, identity string, limit int, window time.Duration, now time.Time) error
}

// Detector is the duplicate detection contract. Guard serializes the
// compare-and-insert sequence for a textual neighborhood.
type Detector interface {
	Guard(text string) (release func())
	FindDuplicate(ctx context.Context, vec []float32, threshold float64) (*dedup.Match, error)
	Store(ctx context.Context, rec domain.VectorRecord) error
}

// Repository persists the scored complaint record.
type Repository interface {
	Insert(ctx context.Context, c domain.Complaint) error
}

// Rescorer recomputes a complaint's priority after a duplicate linkage.
type Rescorer interface {
	Rescore(ctx context.Context, complaintID, trigger string) (float64, error)
}

// Broadcaster publishes live-update events. Best-effort only; it never
// returns an error to the pipeline.
type Broadcaster interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// SettingsSource hands out pipeline tuning snapshots, read fresh at the
// start of each run.
type SettingsSource interface {
	Snapshot() config.Settings
}
