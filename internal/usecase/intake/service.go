package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civiciq/civiciq/internal/domain"
	"github.com/civiciq/civiciq/internal/domain/scoring"
	"github.com/civiciq/civiciq/internal/metrics"
	"github.com/civiciq/civiciq/internal/usecase/dedup"
)

// Stage is a pipeline state. Transitions are forward-only; a fatal failure
// moves any non-terminal stage to StageAborted.
type Stage string

// Pipeline stages in order.
const (
	StageReceived     Stage = "received"
	StageRateChecked  Stage = "rate_checked"
	StageClassified   Stage = "classified"
	StageEmbedded     Stage = "embedded"
	StageDedupChecked Stage = "dedup_checked"
	StageScored       Stage = "scored"
	StagePersisted    Stage = "persisted"
	StageAborted      Stage = "aborted"
)

// retryBackoff is the pause before the single retry of a failed AI call.
const retryBackoff = 500 * time.Millisecond

// Service runs the intake pipeline for one submission: admission control,
// classification, embedding, duplicate detection, scoring, persistence.
type Service struct {
	limiter    Admitter
	classifier domain.Classifier
	embedder   domain.Embedder
	detector   Detector
	repo       Repository
	rescorer   Rescorer
	broadcast  Broadcaster
	settings   SettingsSource
	logger     *zap.Logger
	now        func() time.Time
}

// New creates the intake orchestrator.
func New(
	limiter Admitter,
	classifier domain.Classifier,
	embedder domain.Embedder,
	detector Detector,
	repo Repository,
	rescorer Rescorer,
	broadcast Broadcaster,
	settings SettingsSource,
	logger *zap.Logger,
) *Service {
	return &Service{
		limiter:    limiter,
		classifier: classifier,
		embedder:   embedder,
		detector:   detector,
		repo:       repo,
		rescorer:   rescorer,
		broadcast:  broadcast,
		settings:   settings,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock substitutes the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit runs the full pipeline. On success the returned complaint is
// persisted and scored; on any fatal failure nothing is written. AI failures
// degrade per stage instead of aborting: classification falls back to neutral
// defaults, an embedding failure inserts the complaint as an original with no
// vector (duplicate detection disabled for that submission only).
func (s *Service) Submit(ctx context.Context, identity string, sub domain.Submission) (domain.Complaint, error) {
	snap := s.settings.Snapshot()
	stage := StageReceived

	// External calls survive a caller disconnect (no mid-call abort); the
	// caller context is only consulted before the persistence write.
	pipeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snap.PipelineTimeout)
	defer cancel()

	now := s.now()

	if err := s.limiter.Admit(ctx, identity, snap.RateLimitMax, snap.RateLimitWindow, now); err != nil {
		metrics.RateLimitRejectionsTotal.Inc()
		metrics.IntakeSubmissionsTotal.WithLabelValues("rate_limited").Inc()
		return domain.Complaint{}, err
	}
	stage = StageRateChecked

	analysis := s.classify(pipeCtx, snap.CallTimeout, sub)
	stage = StageClassified

	vector := s.embed(pipeCtx, snap.CallTimeout, sub.Text())
	stage = StageEmbedded

	// Compare-and-insert critical section: two racing submissions with
	// similar text must not both pass as originals.
	release := s.detector.Guard(sub.Text())
	locked := true
	unlock := func() {
		if locked {
			release()
			locked = false
		}
	}
	defer unlock()

	var match *dedup.Match
	if vector != nil {
		dedupStart := time.Now()
		m, err := s.detector.FindDuplicate(pipeCtx, vector, snap.SimilarityThreshold)
		observeStage(StageDedupChecked, dedupStart)
		if err != nil {
			// Candidate pool unavailable: degrade like an embedding failure
			// and insert as an original rather than losing the submission.
			s.logger.Warn("Duplicate detection degraded", zap.Error(err))
		} else {
			match = m
		}
	}
	stage = StageDedupChecked

	c := domain.Complaint{
		ID:          uuid.NewString(),
		UserID:      identity,
		Title:       sub.Title,
		Description: sub.Description,
		Category:    analysis.Category,
		Severity:    analysis.Severity,
		Location:    sub.Location,
		Status:      domain.StatusPending,
		ImageURL:    sub.ImageURL,
		Summary:     analysis.Summary,
		Keywords:    analysis.Keywords,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if match != nil {
		c.IsDuplicate = true
		c.DuplicateOf = match.ComplaintID
	}
	c.PriorityScore = scoring.Score(snap.Weights, c.Severity, 0, 0, 0)
	stage = StageScored

	// All-or-nothing: a cancelled caller gets no partial record.
	if err := ctx.Err(); err != nil {
		s.abort(stage, err)
		return domain.Complaint{}, fmt.Errorf("submission cancelled: %w", err)
	}

	persistStart := time.Now()
	if err := s.repo.Insert(pipeCtx, c); err != nil {
		s.abort(stage, err)
		if !errors.Is(err, domain.ErrPersistence) {
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return domain.Complaint{}, err
	}
	observeStage(StagePersisted, persistStart)
	stage = StagePersisted

	// Originals join the candidate pool; a failure here is non-fatal (the
	// complaint exists, it just cannot be matched against until re-ingested).
	if match == nil && vector != nil {
		if err := s.detector.Store(pipeCtx, domain.VectorRecord{
			ComplaintID: c.ID,
			Vector:      vector,
			CreatedAt:   c.CreatedAt,
		}); err != nil {
			s.logger.Warn("Vector pool write failed",
				zap.String("complaint_id", c.ID),
				zap.Error(err),
			)
		}
	}
	unlock()

	outcome := "accepted"
	if match != nil {
		outcome = "duplicate"
		// The parent's duplicate_count just grew; refresh its score.
		if _, err := s.rescorer.Rescore(pipeCtx, match.ComplaintID, "duplicate"); err != nil {
			s.logger.Warn("Parent rescore failed",
				zap.String("parent_id", match.ComplaintID),
				zap.Error(err),
			)
		}
	}
	metrics.IntakeSubmissionsTotal.WithLabelValues(outcome).Inc()

	s.broadcast.Publish(pipeCtx, "complaint.created", c)

	s.logger.Info("Complaint ingested",
		zap.String("complaint_id", c.ID),
		zap.String("category", c.Category),
		zap.String("severity", string(c.Severity)),
		zap.Float64("priority_score", c.PriorityScore),
		zap.Bool("is_duplicate", c.IsDuplicate),
	)
	return c, nil
}

// classify runs the classifier with one retry, then degrades to neutral
// defaults so the submission proceeds.
func (s *Service) classify(ctx context.Context, timeout time.Duration, sub domain.Submission) domain.Analysis {
	defer observeStage(StageClassified, time.Now())
	analysis, err := withRetry(ctx, timeout, func(callCtx context.Context) (domain.Analysis, error) {
		return s.classifier.Analyze(callCtx, sub.Title, sub.Description)
	})
	if err != nil {
		s.logger.Warn("Classification degraded", zap.Error(err))
		return domain.DegradedAnalysis()
	}
	return analysis
}

// embed runs the embedder with one retry. On failure it returns nil, which
// disables duplicate detection for this submission only.
func (s *Service) embed(ctx context.Context, timeout time.Duration, text string) []float32 {
	defer observeStage(StageEmbedded, time.Now())
	result, err := withRetry(ctx, timeout, func(callCtx context.Context) (domain.EmbeddingResult, error) {
		return s.embedder.Embed(callCtx, text)
	})
	if err != nil {
		s.logger.Warn("Embedding degraded, duplicate detection disabled", zap.Error(err))
		return nil
	}
	return result.Vector
}

func (s *Service) abort(from Stage, err error) {
	metrics.IntakeSubmissionsTotal.WithLabelValues("aborted").Inc()
	s.logger.Error("Submission aborted",
		zap.String("stage", string(from)),
		zap.Error(err),
	)
}

func observeStage(stage Stage, start time.Time) {
	metrics.IntakeStageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

// withRetry calls fn once and, on failure, once more after a short backoff.
// Each attempt gets its own timeout.
func withRetry[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(callCtx)
	}

	v, err := attempt()
	if err == nil {
		return v, nil
	}

	select {
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w (ctx: %w)", err, ctx.Err())
	case <-time.After(retryBackoff):
	}

	return attempt()
}
