package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const providerName = "gemini"

// Client wraps the Gemini API for complaint analysis and embeddings.
type Client struct {
	client          *genai.Client
	classifierModel string
	embeddingModel  string
	logger          *zap.Logger
}

// Config holds Gemini provider settings.
type Config struct {
	APIKey          string
	ClassifierModel string
	EmbeddingModel  string
	Logger          *zap.Logger
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		client:          client,
		classifierModel: cfg.ClassifierModel,
		embeddingModel:  cfg.EmbeddingModel,
		logger:          cfg.Logger,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close gemini client: %w", err)
	}
	return nil
}

// generate runs a prompt through the generative model and returns raw text.
func (c *Client) generate(ctx context.Context, prompt string, temperature float32, maxTokens int32) (string, error) {
	model := c.client.GenerativeModel(c.classifierModel)
	model.SetTemperature(temperature)
	model.SetMaxOutputTokens(maxTokens)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type %T", resp.Candidates[0].Content.Parts[0])
	}
	return string(txt), nil
}

// stripCodeFence removes accidental markdown fences around a JSON payload.
// The model is told to return bare JSON but occasionally fences it anyway.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.SplitN(s, "```", 3)
	if len(parts) < 2 {
		return s
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
