package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ragchat/internal/adapter/analyzer"
	"ragchat/internal/adapter/chunker"
	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// storedCount returns the number of records in store, readable or not.
func storedCount(t *testing.T, store port.KnowledgeStore) int {
	t.Helper()
	docs, skipped, err := store.List(context.Background())
	require.NoError(t, err)
	return len(docs) + len(skipped)
}

// stubEmbedder returns fixed vectors per text and can fail on the nth call.
type stubEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	failOn   int
	calls    int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failOn > 0 && e.calls == e.failOn {
		return nil, domain.EmbeddingError(errors.New("backend unavailable"))
	}
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return e.fallback, nil
}

func (e *stubEmbedder) ModelName() string {
	return "stub"
}

func wordChunker(size int) *chunker.TokenChunker {
	return chunker.NewTokenChunker(size, analyzer.NewWordTokenizer())
}
