package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/civiciq/civiciq/internal/domain"
	"github.com/civiciq/civiciq/internal/metrics"
)

const summaryPrompt = `You are a civic intelligence analyst. Based on these reported civic complaints, generate an insightful locality report.

Recent Complaints:
%s

Return ONLY valid JSON (no markdown):
{
  "summary": "<2-3 paragraph analysis of the main civic problems>",
  "top_issues": ["<issue 1>", "<issue 2>", "<issue 3>"],
  "recommendations": ["<recommendation 1>", "<recommendation 2>", "<recommendation 3>"]
}
`

// maxSummaryComplaints bounds the prompt size.
const maxSummaryComplaints = 20

// LocalityReport is the AI-generated dashboard summary.
type LocalityReport struct {
	Summary         string   `json:"summary"`
	TopIssues       []string `json:"top_issues"`
	Recommendations []string `json:"recommendations"`
}

// LocalitySummary generates a report over recent complaints.
func (c *Client) LocalitySummary(ctx context.Context, complaints []domain.Complaint) (LocalityReport, error) {
	if len(complaints) == 0 {
		return LocalityReport{
			Summary:         "No complaints found in the system yet.",
			Recommendations: []string{"Encourage citizens to report civic issues."},
		}, nil
	}

	if len(complaints) > maxSummaryComplaints {
		complaints = complaints[:maxSummaryComplaints]
	}

	var sb strings.Builder
	for _, cp := range complaints {
		fmt.Fprintf(&sb, "- [%s] %s (Severity: %s, Location: %s)\n",
			cp.Category, cp.Title, cp.Severity, cp.Location)
	}

	start := time.Now()
	raw, err := c.generate(ctx, fmt.Sprintf(summaryPrompt, sb.String()), 0.3, 1024)
	duration := time.Since(start)

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(providerName, "summary", "error").Inc()
		return LocalityReport{}, fmt.Errorf("locality summary: %w", err)
	}

	var report LocalityReport
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &report); err != nil {
		metrics.AIRequestsTotal.WithLabelValues(providerName, "summary", "error").Inc()
		return LocalityReport{}, fmt.Errorf("locality summary: malformed response: %w", err)
	}

	metrics.AIRequestsTotal.WithLabelValues(providerName, "summary", "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(providerName, "summary").Observe(duration.Seconds())

	return report, nil
}
