package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	complaintrepo "github.com/civiciq/civiciq/internal/repository/complaint"
	"github.com/civiciq/civiciq/internal/transport/gemini"
)

const (
	topLocations  = 3
	summaryWindow = 20
)

// Dashboard is the aggregated analytics payload.
type Dashboard struct {
	Total               int            `json:"total_complaints"`
	Pending             int            `json:"pending"`
	Resolved            int            `json:"resolved"`
	HighUnresolved      int            `json:"high_severity_unresolved"`
	ByCategory          map[string]int `json:"by_category"`
	TopLocations        []LocationRank `json:"top_locations"`
	AvgResolutionHours  float64        `json:"avg_resolution_hours"`
	ResolvedWithLogData int            `json:"resolved_with_log_data"`
}

// LocationRank is one entry of the busiest-locations leaderboard.
type LocationRank struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}

// Service aggregates complaint data for the dashboard and the AI
// locality report.
type Service struct {
	repo       Repository
	summarizer Summarizer
	logger     *zap.Logger
}

func NewService(repo Repository, summarizer Summarizer, logger *zap.Logger) *Service {
	return &Service{repo: repo, summarizer: summarizer, logger: logger}
}

// Dashboard computes the analytics snapshot from the current table state.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard counts: %w", err)
	}

	rows, err := s.repo.AnalyticsRows(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard rows: %w", err)
	}

	durations, err := s.repo.ResolutionDurations(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard resolution durations: %w", err)
	}

	d := Dashboard{
		Total:          counts.Total,
		Pending:        counts.Pending,
		Resolved:       counts.Resolved,
		HighUnresolved: counts.HighUnresolved,
		ByCategory:     categoryCounts(rows),
		TopLocations:   rankLocations(rows, topLocations),
	}

	if len(durations) > 0 {
		var total float64
		for _, dur := range durations {
			total += dur.Hours()
		}
		d.AvgResolutionHours = math.Round(total/float64(len(durations))*100) / 100
		d.ResolvedWithLogData = len(durations)
	}
	return d, nil
}

// Summary asks the AI provider for a narrative report over the most
// recent complaints.
func (s *Service) Summary(ctx context.Context) (gemini.LocalityReport, error) {
	recent, err := s.repo.ListRecent(ctx, summaryWindow)
	if err != nil {
		return gemini.LocalityReport{}, fmt.Errorf("summary recent complaints: %w", err)
	}
	report, err := s.summarizer.LocalitySummary(ctx, recent)
	if err != nil {
		s.logger.Warn("locality summary failed", zap.Error(err))
		return gemini.LocalityReport{}, err
	}
	return report, nil
}

func categoryCounts(rows []complaintrepo.AnalyticsRow) map[string]int {
	out := make(map[string]int)
	for _, row := range rows {
		cat := row.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		out[cat]++
	}
	return out
}

// rankLocations groups rows by the first comma-separated segment of the
// location string and returns the n busiest areas.
func rankLocations(rows []complaintrepo.AnalyticsRow, n int) []LocationRank {
	counts := make(map[string]int)
	for _, row := range rows {
		area := strings.TrimSpace(strings.SplitN(row.Location, ",", 2)[0])
		if area == "" {
			continue
		}
		counts[area]++
	}

	ranked := make([]LocationRank, 0, len(counts))
	for area, count := range counts {
		ranked = append(ranked, LocationRank{Location: area, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Location < ranked[j].Location
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
