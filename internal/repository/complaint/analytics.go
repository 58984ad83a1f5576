package complaint

import (
	"context"
	"fmt"
	"time"

	"github.com/civiciq/civiciq/internal/domain"
)

// StatusCounts holds the dashboard totals.
type StatusCounts struct {
	Total          int
	Pending        int
	Resolved       int
	HighUnresolved int
}

// CountByStatus computes the dashboard totals in one query.
func (r *Repo) CountByStatus(ctx context.Context) (StatusCounts, error) {
	var c StatusCounts
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COUNT(*) FILTER (WHERE severity = 'High' AND status <> 'resolved')
		FROM complaints`,
	).Scan(&c.Total, &c.Pending, &c.Resolved, &c.HighUnresolved)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("count by status: %w", err)
	}
	return c, nil
}

// AnalyticsRow is the slice of complaint fields the analytics service
// aggregates over.
type AnalyticsRow struct {
	Category  string
	Location  string
	Severity  domain.Severity
	Status    domain.Status
	CreatedAt time.Time
}

// AnalyticsRows returns category/location/severity/status for every complaint.
func (r *Repo) AnalyticsRows(ctx context.Context) ([]AnalyticsRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT category, location, severity, status, created_at FROM complaints`)
	if err != nil {
		return nil, fmt.Errorf("analytics rows: %w", err)
	}
	defer rows.Close()

	var out []AnalyticsRow
	for rows.Next() {
		var row AnalyticsRow
		var severity, status string
		if err := rows.Scan(&row.Category, &row.Location, &severity, &status, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analytics row: %w", err)
		}
		row.Severity = domain.Severity(severity)
		row.Status = domain.Status(status)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics rows: %w", err)
	}
	return out, nil
}

// ResolutionDurations returns creation-to-resolution spans from the
// resolution log, for the average-resolution-time metric.
func (r *Repo) ResolutionDurations(ctx context.Context) ([]time.Duration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rl.resolved_at, c.created_at
		FROM resolution_logs rl
		JOIN complaints c ON c.id = rl.complaint_id`)
	if err != nil {
		return nil, fmt.Errorf("resolution durations: %w", err)
	}
	defer rows.Close()

	var out []time.Duration
	for rows.Next() {
		var resolvedAt, createdAt time.Time
		if err := rows.Scan(&resolvedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan resolution row: %w", err)
		}
		if resolvedAt.After(createdAt) {
			out = append(out, resolvedAt.Sub(createdAt))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolution durations: %w", err)
	}
	return out, nil
}
