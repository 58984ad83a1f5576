package complaint

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/civiciq/civiciq/internal/domain"
	complaintrepo "github.com/civiciq/civiciq/internal/repository/complaint"
)

// Service handles the complaint lifecycle after intake: listing, voting,
// status transitions, resolution.
type Service struct {
	repo      Repository
	rescorer  Rescorer
	broadcast Broadcaster
	logger    *zap.Logger

	defaultPageSize int
	maxPageSize     int
}

// New creates a complaint lifecycle service.
func New(repo Repository, rescorer Rescorer, broadcast Broadcaster, logger *zap.Logger) *Service {
	return &Service{
		repo:            repo,
		rescorer:        rescorer,
		broadcast:       broadcast,
		logger:          logger,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
}

// WithPagination overrides page size limits.
func (s *Service) WithPagination(defaultSize, maxSize int) *Service {
	s.defaultPageSize = defaultSize
	s.maxPageSize = maxSize
	return s
}

// Get returns a complaint with its vote count.
func (s *Service) Get(ctx context.Context, id string) (domain.Complaint, int, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Complaint{}, 0, fmt.Errorf("get complaint: %w", err)
	}
	votes, err := s.repo.VoteCount(ctx, id)
	if err != nil {
		return domain.Complaint{}, 0, fmt.Errorf("vote count: %w", err)
	}
	return c, votes, nil
}

// Page is one page of ranked complaints.
type Page struct {
	Complaints []complaintrepo.Listed
	Total      int
	Page       int
	PageSize   int
}

// List returns a filtered, ranked page. Duplicates never appear in ranking
// views; their parent carries their weight through duplicate_count.
func (s *Service) List(ctx context.Context, f complaintrepo.ListFilter) (Page, error) {
	if f.PageSize <= 0 {
		f.PageSize = s.defaultPageSize
	}
	if f.PageSize > s.maxPageSize {
		f.PageSize = s.maxPageSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	f.IncludeDuplicates = false

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, fmt.Errorf("list complaints: %w", err)
	}
	return Page{Complaints: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// Vote records one user's upvote and refreshes the priority score. A repeat
// vote returns domain.ErrAlreadyVoted.
func (s *Service) Vote(ctx context.Context, complaintID, userID string) (int, error) {
	// Existence check first so a vote on a missing complaint is a 404, not
	// a silent foreign-key error.
	if _, err := s.repo.Get(ctx, complaintID); err != nil {
		return 0, fmt.Errorf("get complaint: %w", err)
	}

	if err := s.repo.InsertVote(ctx, complaintID, userID); err != nil {
		return 0, fmt.Errorf("insert vote: %w", err)
	}

	if _, err := s.rescorer.Rescore(ctx, complaintID, "vote"); err != nil {
		// The vote is recorded either way; the score converges on the next
		// rescore pass.
		s.logger.Warn("Rescore after vote failed",
			zap.String("complaint_id", complaintID),
			zap.Error(err),
		)
	}

	votes, err := s.repo.VoteCount(ctx, complaintID)
	if err != nil {
		return 0, fmt.Errorf("vote count: %w", err)
	}

	s.broadcast.Publish(ctx, "complaint.voted", map[string]any{
		"complaint_id": complaintID,
		"vote_count":   votes,
	})
	return votes, nil
}

// UpdateStatus moves a complaint forward in its lifecycle. Backward
// transitions return domain.ErrStatusTransition.
func (s *Service) UpdateStatus(ctx context.Context, complaintID string, next domain.Status) error {
	c, err := s.repo.Get(ctx, complaintID)
	if err != nil {
		return fmt.Errorf("get complaint: %w", err)
	}

	if !c.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrStatusTransition, c.Status, next)
	}

	if err := s.repo.UpdateStatus(ctx, complaintID, next); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.broadcast.Publish(ctx, "complaint.status_changed", map[string]any{
		"complaint_id": complaintID,
		"status":       string(next),
	})
	return nil
}

// Resolve marks a complaint resolved and records who resolved it and why.
// The complaint keeps its score for audit; rankings exclude it by status.
func (s *Service) Resolve(ctx context.Context, complaintID, adminID, note string) error {
	c, err := s.repo.Get(ctx, complaintID)
	if err != nil {
		return fmt.Errorf("get complaint: %w", err)
	}

	if !c.Status.CanTransitionTo(domain.StatusResolved) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrStatusTransition, c.Status, domain.StatusResolved)
	}

	if err := s.repo.UpdateStatus(ctx, complaintID, domain.StatusResolved); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if err := s.repo.InsertResolutionLog(ctx, complaintID, adminID, note); err != nil {
		return fmt.Errorf("resolution log: %w", err)
	}

	// Freeze the age-decay term now that the complaint is resolved.
	if _, err := s.rescorer.Rescore(ctx, complaintID, "resolve"); err != nil {
		s.logger.Warn("Rescore after resolve failed",
			zap.String("complaint_id", complaintID),
			zap.Error(err),
		)
	}

	s.broadcast.Publish(ctx, "complaint.resolved", map[string]any{
		"complaint_id": complaintID,
		"resolved_by":  adminID,
	})

	s.logger.Info("Complaint resolved",
		zap.String("complaint_id", complaintID),
		zap.String("resolved_by", adminID),
	)
	return nil
}
