package rescore

import (
	"context"

	"github.com/civiciq/civiciq/internal/config"
	"github.com/civiciq/civiciq/internal/domain"
)

// Repository reads current complaint state and writes refreshed scores.
type Repository interface {
	Get(ctx context.Context, id string) (domain.Complaint, error)
	VoteCount(ctx context.Context, complaintID string) (int, error)
	DuplicateCount(ctx context.Context, complaintID string) (int, error)
	UpdateScore(ctx context.Context, complaintID string, score float64) error
	ListUnresolvedIDs(ctx context.Context) ([]string, error)
}

// Broadcaster publishes score-change events, best-effort.
type Broadcaster interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// SettingsSource supplies the current severity weight table.
type SettingsSource interface {
	Snapshot() config.Settings
}
