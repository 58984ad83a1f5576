package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/civiciq/civiciq/internal/domain"
	"github.com/civiciq/civiciq/internal/metrics"
)

const classifyPrompt = `You are a civic complaint analysis AI. Analyze this complaint and return ONLY valid JSON.

Complaint Title: %s
Complaint Description: %s

Return exactly this JSON structure (no markdown, no explanation):
{
  "category": "<one of: Road & Infrastructure, Water Supply, Sanitation, Electricity, Public Safety, Parks & Green Spaces, Noise Pollution, Other>",
  "severity": "<one of: Low, Medium, High>",
  "summary": "<1-2 sentence summary of the core issue>",
  "keywords": ["<keyword1>", "<keyword2>", "<keyword3>"]
}

Severity guide:
- High: immediate safety risk, water/power outage, major road damage
- Medium: recurring issue, moderate inconvenience, health risk
- Low: minor issue, aesthetic problem, low urgency
`

// analysisPayload mirrors the JSON contract with the model.
type analysisPayload struct {
	Category string   `json:"category"`
	Severity string   `json:"severity"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// Analyze implements domain.Classifier. All failures (transport, malformed
// JSON, empty response) map to domain.ErrClassification so the orchestrator
// can apply its degrade policy without inspecting transport errors.
func (c *Client) Analyze(ctx context.Context, title, description string) (domain.Analysis, error) {
	prompt := fmt.Sprintf(classifyPrompt, title, description)

	start := time.Now()
	raw, err := c.generate(ctx, prompt, 0.1, 512)
	duration := time.Since(start)

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(providerName, "classify", "error").Inc()
		return domain.Analysis{}, fmt.Errorf("%w: %w", domain.ErrClassification, err)
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		metrics.AIRequestsTotal.WithLabelValues(providerName, "classify", "error").Inc()
		c.logger.Warn("Malformed classifier response",
			zap.String("model", c.classifierModel),
			zap.Error(err),
		)
		return domain.Analysis{}, fmt.Errorf("%w: malformed response: %w", domain.ErrClassification, err)
	}

	severity := domain.Severity(payload.Severity)
	if !severity.Valid() {
		severity = domain.ParseSeverity(payload.Severity)
	}
	if payload.Category == "" {
		payload.Category = "Other"
	}

	metrics.AIRequestsTotal.WithLabelValues(providerName, "classify", "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(providerName, "classify").Observe(duration.Seconds())

	return domain.Analysis{
		Category: payload.Category,
		Severity: severity,
		Summary:  payload.Summary,
		Keywords: payload.Keywords,
	}, nil
}
