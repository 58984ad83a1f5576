package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/civiciq/civiciq/internal/domain"
	"github.com/civiciq/civiciq/internal/metrics"
)

// Embed implements domain.Embedder via the Gemini embedding model.
// Failures map to domain.ErrEmbedding; the Gemini API reports no token usage
// for embeddings, so usage fields stay zero.
func (c *Client) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	model := c.client.EmbeddingModel(c.embeddingModel)

	start := time.Now()
	res, err := model.EmbedContent(ctx, genai.Text(text))
	duration := time.Since(start)

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(providerName, "embed", "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		metrics.AIRequestsTotal.WithLabelValues(providerName, "embed", "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty embedding response", domain.ErrEmbedding)
	}

	metrics.AIRequestsTotal.WithLabelValues(providerName, "embed", "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(providerName, "embed").Observe(duration.Seconds())

	return domain.EmbeddingResult{Vector: res.Embedding.Values}, nil
}

// HealthCheck verifies API availability with a minimal embedding call.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.EmbeddingModel(c.embeddingModel).EmbedContent(ctx, genai.Text("ping")); err != nil {
		return fmt.Errorf("gemini health check: %w", err)
	}
	return nil
}
