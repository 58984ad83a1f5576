package rescore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/civiciq/civiciq/internal/domain/scoring"
	"github.com/civiciq/civiciq/internal/metrics"
)

// Service recomputes priority scores as votes, duplicates, and age change
// after initial scoring. Rescoring is idempotent: the same underlying state
// always yields the same score.
type Service struct {
	repo      Repository
	broadcast Broadcaster
	settings  SettingsSource
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a rescoring service.
func New(repo Repository, broadcast Broadcaster, settings SettingsSource, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		broadcast: broadcast,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock substitutes the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Rescore reads the complaint's vote/duplicate/age state and writes the
// refreshed score. Counts are read at call time; a vote landing concurrently
// converges on the next rescore.
func (s *Service) Rescore(ctx context.Context, complaintID, trigger string) (float64, error) {
	c, err := s.repo.Get(ctx, complaintID)
	if err != nil {
		return 0, fmt.Errorf("load complaint: %w", err)
	}

	votes, err := s.repo.VoteCount(ctx, complaintID)
	if err != nil {
		return 0, fmt.Errorf("vote count: %w", err)
	}

	duplicates, err := s.repo.DuplicateCount(ctx, complaintID)
	if err != nil {
		return 0, fmt.Errorf("duplicate count: %w", err)
	}

	snap := s.settings.Snapshot()
	score := scoring.ScoreComplaint(snap.Weights, c, votes, duplicates, s.now())

	if err := s.repo.UpdateScore(ctx, complaintID, score); err != nil {
		return 0, fmt.Errorf("update score: %w", err)
	}

	metrics.RescoresTotal.WithLabelValues(trigger).Inc()
	s.broadcast.Publish(ctx, "complaint.rescored", map[string]any{
		"complaint_id":   complaintID,
		"priority_score": score,
	})

	s.logger.Debug("Complaint rescored",
		zap.String("complaint_id", complaintID),
		zap.String("trigger", trigger),
		zap.Float64("priority_score", score),
		zap.Int("votes", votes),
		zap.Int("duplicates", duplicates),
	)
	return score, nil
}

// RunPeriodic refreshes the age-decay term of all unresolved originals on a
// fixed interval until ctx is cancelled. Intended to run in its own
// goroutine from main.
func (s *Service) RunPeriodic(ctx context.Context) {
	interval := s.settings.Snapshot().RescoreInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Periodic rescore started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Periodic rescore stopped")
			return
		case <-ticker.C:
			s.rescoreAll(ctx)
		}
	}
}

func (s *Service) rescoreAll(ctx context.Context) {
	ids, err := s.repo.ListUnresolvedIDs(ctx)
	if err != nil {
		s.logger.Error("Periodic rescore listing failed", zap.Error(err))
		return
	}

	var failed int
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Rescore(ctx, id, "periodic"); err != nil {
			failed++
			s.logger.Warn("Periodic rescore failed",
				zap.String("complaint_id", id),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Periodic rescore pass complete",
		zap.Int("complaints", len(ids)),
		zap.Int("failed", failed),
	)
}
