package complaint

import (
	"context"

	"github.com/civiciq/civiciq/internal/domain"
	complaintrepo "github.com/civiciq/civiciq/internal/repository/complaint"
)

// Repository is the persistence contract for complaint lifecycle operations.
type Repository interface {
	Get(ctx context.Context, id string) (domain.Complaint, error)
	List(ctx context.Context, f complaintrepo.ListFilter) ([]complaintrepo.Listed, int, error)
	InsertVote(ctx context.Context, complaintID, userID string) error
	VoteCount(ctx context.Context, complaintID string) (int, error)
	UpdateStatus(ctx context.Context, complaintID string, status domain.Status) error
	InsertResolutionLog(ctx context.Context, complaintID, resolvedBy, note string) error
}

// Rescorer refreshes a complaint's priority after a vote or resolution.
type Rescorer interface {
	Rescore(ctx context.Context, complaintID, trigger string) (float64, error)
}

// Broadcaster publishes lifecycle events, best-effort.
type Broadcaster interface {
	Publish(ctx context.Context, eventType string, payload any)
}
