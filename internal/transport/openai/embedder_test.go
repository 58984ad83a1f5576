package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/civiciq/civiciq/internal/domain"
	"github.com/civiciq/civiciq/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

// embeddingResponse mirrors the OpenAI-compatible API embedding response.
type embeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func embeddingServer(t *testing.T, vec []float32, tokens int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		resp := embeddingResponse{Object: "list", Model: "test-model"}
		resp.Data = append(resp.Data, struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}{
			Object:    "embedding",
			Embedding: vec,
			Index:     0,
		})
		resp.Usage.PromptTokens = tokens
		resp.Usage.TotalTokens = tokens

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbedder_Embed(t *testing.T) {
	expectedVec := []float32{0.1, 0.2, 0.3, 0.4}

	server := embeddingServer(t, expectedVec, 10)
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		Dimensions: 4,
		Logger:     zap.NewNop(),
	})

	result, err := emb.Embed(context.Background(), "streetlight out on 5th main")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(result.Vector) != len(expectedVec) {
		t.Fatalf("expected %d dimensions, got %d", len(expectedVec), len(result.Vector))
	}
	for i, v := range result.Vector {
		if v != expectedVec[i] {
			t.Errorf("vec[%d] = %f, expected %f", i, v, expectedVec[i])
		}
	}
}

func TestEmbedder_EmbedReturnsUsage(t *testing.T) {
	server := embeddingServer(t, []float32{0.1, 0.2}, 42)
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})

	result, err := emb.Embed(context.Background(), "garbage not collected this week")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if result.PromptTokens != 42 {
		t.Errorf("PromptTokens = %d, expected 42", result.PromptTokens)
	}
	if result.TotalTokens != 42 {
		t.Errorf("TotalTokens = %d, expected 42", result.TotalTokens)
	}
}

func TestEmbedder_APIErrorMapsToEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"model overloaded"}`))
	}))
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})

	_, err := emb.Embed(context.Background(), "pothole near the market")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Errorf("expected domain.ErrEmbedding, got %v", err)
	}
}

func TestEmbedder_EmptyResponseMapsToEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[],"model":"test-model"}`))
	}))
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})

	_, err := emb.Embed(context.Background(), "water supply disrupted")
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Errorf("expected domain.ErrEmbedding, got %v", err)
	}
}

func TestParseAPIError_UnreachableServer(t *testing.T) {
	emb := NewEmbedder(&Config{
		APIKey:  "test-key",
		BaseURL: "http://127.0.0.1:1",
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})

	_, err := emb.Embed(context.Background(), "broken footpath")
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Errorf("expected domain.ErrEmbedding, got %v", err)
	}
}
