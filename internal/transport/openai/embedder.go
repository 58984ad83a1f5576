package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/civiciq/civiciq/internal/domain"
	"github.com/civiciq/civiciq/internal/metrics"
)

const providerName = "openai"

// Embedder is an embedding provider using the OpenAI-compatible API.
// Used as the alternate embedding driver when Gemini is not configured.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     cfg.Logger,
	}
}

// Embed implements domain.Embedder. Returns the vector and token usage.
// All failures map to domain.ErrEmbedding.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(providerName, "embed", "error").Inc()
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.AIRequestsTotal.WithLabelValues(providerName, "embed", "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty embedding response", domain.ErrEmbedding)
	}

	metrics.AIRequestsTotal.WithLabelValues(providerName, "embed", "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(providerName, "embed").Observe(duration.Seconds())

	totalTokens := resp.Usage.TotalTokens
	promptTokens := resp.Usage.PromptTokens
	if totalTokens > 0 {
		metrics.AITokensTotal.WithLabelValues(providerName, "embed", "prompt").Add(float64(promptTokens))
		metrics.AITokensTotal.WithLabelValues(providerName, "embed", "total").Add(float64(totalTokens))
	}

	return domain.EmbeddingResult{
		Vector:       resp.Data[0].Embedding,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbedding for the degrade policy.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbedding

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("%w: API error %d: %s", wrap, reqErr.HTTPStatusCode, detail)
		}
		return fmt.Errorf("%w: API error %d: %s", wrap, reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: API error %d: %s", wrap, apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("%w: request failed: %v", wrap, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
