package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/metrics"
)

func newOllamaServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	var got embedRequest
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"embedding":[0.25,-0.5,1]}`))
	})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "nomic-embed-text"}, m)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)
	assert.Equal(t, embedRequest{Model: "nomic-embed-text", Prompt: "hello"}, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("ok")))
}

func TestOllamaEmbedder_Defaults(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{}, nil)
	assert.Equal(t, DefaultModel, e.ModelName())
	assert.Equal(t, DefaultBaseURL, e.baseURL)
	assert.Equal(t, DefaultTimeout, e.client.Timeout)
	assert.Nil(t, e.limiter)
}

func TestOllamaEmbedder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		msg     string
	}{
		{
			name: "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			msg: "status 404",
		},
		{
			name: "missing embedding field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"error":"nope"}`))
			},
			msg: "no embedding",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
			msg: "failed to parse response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOllamaServer(t, tt.handler)
			e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL}, nil)

			_, err := e.Embed(context.Background(), "hello")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrEmbeddingBackend)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestOllamaEmbedder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: url, Timeout: time.Second}, nil)
	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingBackend)
}

func TestOllamaEmbedder_ContextCanceled(t *testing.T) {
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[1]}`))
	})
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingBackend)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOllamaEmbedder_RateLimit(t *testing.T) {
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[1]}`))
	})
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, RateLimit: 0.001, Burst: 1}, nil)
	require.NotNil(t, e.limiter)

	_, err := e.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.Embed(ctx, "second")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingBackend)
}

func TestOllamaEmbedder_WithModel(t *testing.T) {
	var models []string
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		models = append(models, req.Model)
		w.Write([]byte(`{"embedding":[1]}`))
	})

	base := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "mistral"}, nil)
	derived := base.WithModel("qwen2-7b")

	assert.Same(t, base, base.WithModel(""))
	assert.Same(t, base, base.WithModel("mistral"))
	assert.Equal(t, "qwen2-7b", derived.ModelName())
	assert.Equal(t, "mistral", base.ModelName())
	assert.Same(t, base.client, derived.client)

	_, err := derived.Embed(context.Background(), "a")
	require.NoError(t, err)
	_, err = base.Embed(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2-7b", "mistral"}, models)
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Knowledge base search")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "knowledge BASE search!")
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.Equal(t, a, b)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)

	empty, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Len(t, empty, 64)

	defaulted, err := NewHashEmbedder(0).Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, defaulted, DefaultHashDimension)
}
