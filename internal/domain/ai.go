package domain

import "context"

// Classifier is the shared text-understanding contract between layers.
type Classifier interface {
	Analyze(ctx context.Context, title, description string) (Analysis, error)
}

// Analysis is the structured result of complaint text classification.
type Analysis struct {
	Category string
	Severity Severity
	Summary  string
	Keywords []string
}

// DegradedAnalysis is the fallback used when classification fails after retry.
// The submission proceeds with neutral defaults instead of aborting.
func DegradedAnalysis() Analysis {
	return Analysis{
		Category: "Uncategorized",
		Severity: SeverityMedium,
	}
}

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies AI provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage.
type EmbeddingResult struct {
	Vector       []float32
	PromptTokens int
	TotalTokens  int
}
