package domain

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the classified urgency tier of a complaint.
type Severity string

// Severity tiers assigned by the classifier.
const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// ParseSeverity normalizes a severity string. Unknown values fall back to Low,
// mirroring how unknown tiers score at the lowest weight.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	default:
		return SeverityLow
	}
}

// Valid reports whether the severity is one of the known tiers.
func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// Status is the complaint lifecycle state. Transitions are forward-only.
type Status string

// Complaint lifecycle states.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

var statusOrder = map[Status]int{
	StatusPending:    0,
	StatusInProgress: 1,
	StatusResolved:   2,
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is a forward step.
func (s Status) CanTransitionTo(next Status) bool {
	cur, ok1 := statusOrder[s]
	nxt, ok2 := statusOrder[next]
	return ok1 && ok2 && nxt > cur
}

// Submission is the validated citizen input to the intake pipeline.
type Submission struct {
	Title       string
	Description string
	Location    string
	ImageURL    string
}

const (
	maxTitleLen       = 200
	maxDescriptionLen = 5000
)

// NewSubmission validates raw complaint input.
func NewSubmission(title, description, location, imageURL string) (Submission, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return Submission{}, fmt.Errorf("%w: title is required", ErrInvalidSubmission)
	}
	if len(title) > maxTitleLen {
		return Submission{}, fmt.Errorf("%w: title too long (max %d)", ErrInvalidSubmission, maxTitleLen)
	}
	if description == "" {
		return Submission{}, fmt.Errorf("%w: description is required", ErrInvalidSubmission)
	}
	if len(description) > maxDescriptionLen {
		return Submission{}, fmt.Errorf("%w: description too long (max %d)", ErrInvalidSubmission, maxDescriptionLen)
	}
	return Submission{
		Title:       title,
		Description: description,
		Location:    strings.TrimSpace(location),
		ImageURL:    strings.TrimSpace(imageURL),
	}, nil
}

// Text returns the combined text the classifier and embedder operate on.
func (s Submission) Text() string {
	return s.Title + " " + s.Description
}

// Complaint is the fully scored record produced by the intake pipeline.
// DuplicateOf is empty for originals; when IsDuplicate is true it always
// references an original (no duplicate chains deeper than 1).
type Complaint struct {
	ID            string
	UserID        string
	Title         string
	Description   string
	Category      string
	Severity      Severity
	PriorityScore float64
	Location      string
	Status        Status
	ImageURL      string
	Summary       string
	Keywords      []string
	IsDuplicate   bool
	DuplicateOf   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Vote is one citizen's upvote on a complaint. The (ComplaintID, UserID)
// pair is unique, enforced at the storage boundary.
type Vote struct {
	ComplaintID string
	UserID      string
	CreatedAt   time.Time
}

// VectorRecord is a stored embedding for an original complaint.
// Duplicates carry no vector of their own.
type VectorRecord struct {
	ComplaintID string
	Vector      []float32
	CreatedAt   time.Time
}
