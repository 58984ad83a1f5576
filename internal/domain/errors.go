package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound signals a missing complaint.
	ErrNotFound = errors.New("complaint not found")
	// ErrInvalidSubmission signals rejected citizen input.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrAlreadyVoted signals a repeat vote by the same user.
	ErrAlreadyVoted = errors.New("already voted")
	// ErrStatusTransition signals a backward or unknown status change.
	ErrStatusTransition = errors.New("invalid status transition")

	// ErrRateLimited signals an admission-control rejection.
	ErrRateLimited = errors.New("rate limited")
	// ErrClassification signals a text-understanding service failure.
	ErrClassification = errors.New("classification failed")
	// ErrEmbedding signals an embedding service failure.
	ErrEmbedding = errors.New("embedding failed")
	// ErrPersistence signals a storage failure fatal to the submission.
	ErrPersistence = errors.New("persistence failed")
)

// RateLimitError wraps ErrRateLimited with the admission window details so
// callers can report a precise retry-after.
type RateLimitError struct {
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: max %d submissions per %s, retry after %s",
		ErrRateLimited.Error(), e.Limit, e.Window, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
