package analytics

import (
	"context"
	"time"

	"github.com/civiciq/civiciq/internal/domain"
	complaintrepo "github.com/civiciq/civiciq/internal/repository/complaint"
	"github.com/civiciq/civiciq/internal/transport/gemini"
)

// Repository supplies the raw rows the dashboard aggregates.
type Repository interface {
	CountByStatus(ctx context.Context) (complaintrepo.StatusCounts, error)
	AnalyticsRows(ctx context.Context) ([]complaintrepo.AnalyticsRow, error)
	ResolutionDurations(ctx context.Context) ([]time.Duration, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Complaint, error)
}

// Summarizer generates the AI locality report.
type Summarizer interface {
	LocalitySummary(ctx context.Context, complaints []domain.Complaint) (gemini.LocalityReport, error)
}
