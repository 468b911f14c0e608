package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"ragchat/internal/domain"
	"ragchat/internal/metrics"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "mistral"
	DefaultTimeout = 60 * time.Second
)

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// RateLimit caps requests per second; 0 disables limiting.
	RateLimit float64
	Burst     int
}

// OllamaEmbedder calls the Ollama embeddings API.
// The model is fixed for the lifetime of the embedder; use WithModel to
// derive one for another model.
type OllamaEmbedder struct {
	client  *http.Client
	baseURL string
	model   string
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaEmbedder(cfg OllamaConfig, m *metrics.Metrics) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &OllamaEmbedder{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		limiter: limiter,
		metrics: m,
	}
}

// WithModel returns an embedder for model that shares the HTTP client and rate limiter.
func (e *OllamaEmbedder) WithModel(model string) *OllamaEmbedder {
	if model == "" || model == e.model {
		return e
	}
	derived := *e
	derived.model = model
	return &derived
}

// Embed returns the embedding of text. Every failure wraps domain.ErrEmbeddingBackend.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.embed(ctx, text)
	e.metrics.RecordEmbedding(time.Since(start), err)
	if err != nil {
		return nil, domain.EmbeddingError(err)
	}
	return vec, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	jsonData, err := json.Marshal(embedRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, preview(body))
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", preview(body), err)
	}
	if len(embResp.Embedding) == 0 {
		return nil, fmt.Errorf("response has no embedding (body: %s)", preview(body))
	}

	vec := make([]float32, len(embResp.Embedding))
	for i, v := range embResp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

func preview(body []byte) string {
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}
