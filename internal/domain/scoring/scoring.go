package scoring

import (
	"math"
	"time"

	"github.com/civiciq/civiciq/internal/domain"
)

// Formula constants. Votes and duplicates are social proof; the age term
// keeps old unresolved complaints from sinking, capped so staleness alone
// never outweighs vote-driven urgency.
const (
	VoteMultiplier      = 2.0
	DuplicateMultiplier = 1.5
	DecayPerDay         = 0.5
	DecayCap            = 20.0
)

// Weights is the per-severity base contribution. Configurable so operators
// can rebalance tiers without a redeploy.
type Weights struct {
	Low    float64
	Medium float64
	High   float64
}

// DefaultWeights returns the standard severity weight table.
func DefaultWeights() Weights {
	return Weights{Low: 1, Medium: 5, High: 10}
}

// For returns the weight for a severity tier. Unknown tiers score as Low.
func (w Weights) For(s domain.Severity) float64 {
	switch s {
	case domain.SeverityHigh:
		return w.High
	case domain.SeverityMedium:
		return w.Medium
	default:
		return w.Low
	}
}

// Score computes the priority score:
//
//	weight(severity) + votes*2 + duplicates*1.5 + min(ageDays*0.5, 20)
//
// Rounded to two decimals for stable storage and display.
func Score(w Weights, severity domain.Severity, votes, duplicates int, ageDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	decay := math.Min(ageDays*DecayPerDay, DecayCap)
	total := w.For(severity) + float64(votes)*VoteMultiplier + float64(duplicates)*DuplicateMultiplier + decay
	return math.Round(total*100) / 100
}

// AgeDays returns the fractional age in days of a complaint at the given
// instant. Fractional days keep the ranking smooth between rescores.
func AgeDays(createdAt, now time.Time) float64 {
	if now.Before(createdAt) {
		return 0
	}
	return now.Sub(createdAt).Seconds() / 86400
}

// ScoreComplaint applies the formula to a complaint's current state.
// Resolved complaints keep their severity/vote/duplicate contributions for
// audit but accrue no age decay.
func ScoreComplaint(w Weights, c domain.Complaint, votes, duplicates int, now time.Time) float64 {
	ageDays := 0.0
	if c.Status != domain.StatusResolved {
		ageDays = AgeDays(c.CreatedAt, now)
	}
	return Score(w, c.Severity, votes, duplicates, ageDays)
}
