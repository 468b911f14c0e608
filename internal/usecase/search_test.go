package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ragchat/internal/adapter/cache"
	"ragchat/internal/adapter/embedding"
	"ragchat/internal/adapter/filestore"
	"ragchat/internal/adapter/memstore"
	"ragchat/internal/domain"
)

func storedDocument(id string, chunks ...domain.Chunk) domain.Document {
	now := time.Now().UTC()
	return domain.Document{
		ID:        id,
		Title:     id,
		Type:      "txt",
		Vectors:   chunks[0].Vector,
		Chunks:    chunks,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func seed(t *testing.T, docs ...domain.Document) *memstore.MemoryStore {
	t.Helper()
	store := memstore.NewMemoryStore()
	for _, doc := range docs {
		require.NoError(t, store.Put(context.Background(), doc))
	}
	return store
}

func queryEmbedder(vec ...float32) *stubEmbedder {
	return &stubEmbedder{fallback: vec}
}

func TestSearcher_HalfSimilarity(t *testing.T) {
	store := seed(t, storedDocument("doc", domain.Chunk{Content: "only chunk", Vector: []float32{1, 1, 1, 1}}))
	s := NewSearcher(queryEmbedder(1, 0, 0, 0), store, nil, nil)

	results, err := s.Search(context.Background(), "question", 3, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.5, results[0].Score)
	assert.Equal(t, "only chunk", results[0].Content)
	assert.Equal(t, "doc", results[0].DocumentID)

	results, err = s.Search(context.Background(), "question", 3, 0.6)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearcher_ThresholdIsStrict(t *testing.T) {
	store := seed(t, storedDocument("doc", domain.Chunk{Content: "c", Vector: []float32{1, 1, 1, 1}}))
	s := NewSearcher(queryEmbedder(1, 0, 0, 0), store, nil, nil)

	results, err := s.Search(context.Background(), "q", 3, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearcher_OrderingAndTopK(t *testing.T) {
	store := seed(t,
		storedDocument("first",
			domain.Chunk{Content: "low", Vector: []float32{1, 3}},
			domain.Chunk{Content: "exact", Vector: []float32{1, 0}},
		),
		storedDocument("second",
			domain.Chunk{Content: "mid", Vector: []float32{1, 1}},
			domain.Chunk{Content: "exact twin", Vector: []float32{2, 0}},
			domain.Chunk{Content: "orthogonal", Vector: []float32{0, 1}},
		),
	)
	s := NewSearcher(queryEmbedder(1, 0), store, nil, nil)

	results, err := s.Search(context.Background(), "q", 10, 0)
	require.NoError(t, err)

	var contents []string
	for i, r := range results {
		contents = append(contents, r.Content)
		assert.Greater(t, r.Score, 0.0)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
	assert.Equal(t, []string{"exact", "exact twin", "mid", "low"}, contents)

	results, err = s.Search(context.Background(), "q", 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Content)
	assert.Equal(t, "exact twin", results[1].Content)
}

func TestSearcher_NonPositiveTopK(t *testing.T) {
	store := seed(t, storedDocument("doc", domain.Chunk{Content: "c", Vector: []float32{1}}))
	embedder := queryEmbedder(1)
	s := NewSearcher(embedder, store, nil, nil)

	for _, k := range []int{0, -1} {
		results, err := s.Search(context.Background(), "q", k, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestSearcher_ZeroNormAndDimensionMismatch(t *testing.T) {
	store := seed(t,
		storedDocument("zero", domain.Chunk{Content: "zero", Vector: []float32{0, 0}}),
		storedDocument("wide", domain.Chunk{Content: "wide", Vector: []float32{1, 0, 0}}),
		storedDocument("ok", domain.Chunk{Content: "ok", Vector: []float32{1, 0}}),
	)
	s := NewSearcher(queryEmbedder(1, 0), store, nil, nil)

	results, err := s.Search(context.Background(), "q", 5, -1)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "ok", results[0].Content)
	assert.Equal(t, "zero", results[1].Content)
	assert.Equal(t, 0.0, results[1].Score)
}

func TestSearcher_EmbeddingFailure(t *testing.T) {
	store := seed(t, storedDocument("doc", domain.Chunk{Content: "c", Vector: []float32{1}}))
	s := NewSearcher(&stubEmbedder{failOn: 1}, store, nil, nil)

	_, err := s.Search(context.Background(), "q", 3, 0.3)
	assert.ErrorIs(t, err, domain.ErrEmbeddingBackend)
}

func TestSearcher_PlainEmbedderErrorsAreClassified(t *testing.T) {
	s := NewSearcher(failingEmbedder{}, memstore.NewMemoryStore(), nil, nil)

	_, err := s.Search(context.Background(), "q", 3, 0.3)
	assert.ErrorIs(t, err, domain.ErrEmbeddingBackend)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func (failingEmbedder) ModelName() string { return "failing" }

func TestSearcher_SkipsUnreadableRecords(t *testing.T) {
	dir := t.TempDir()
	store, err := filestore.NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(),
		storedDocument("good", domain.Chunk{Content: "good", Vector: []float32{1, 0}})))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"id":`), 0644))

	core, logs := observer.New(zapcore.WarnLevel)
	s := NewSearcher(queryEmbedder(1, 0), store, zap.New(core), nil)

	results, err := s.Search(context.Background(), "q", 3, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Content)

	warnings := logs.FilterMessage("skipping unreadable document").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "broken", warnings[0].ContextMap()["key"])
}

func TestSearcher_Idempotent(t *testing.T) {
	store := memstore.NewMemoryStore()
	hash := embedding.NewHashEmbedder(64)
	idx := NewIndexer(wordChunker(4), hash, store, nil, nil)
	ctx := context.Background()

	for _, text := range []string{
		"bbolt stores documents in buckets keyed by id",
		"ollama serves embeddings over http",
		"cosine similarity ranks chunks against the query",
	} {
		_, err := idx.Index(ctx, text, "txt", "note")
		require.NoError(t, err)
	}

	embedder := cache.NewCachedEmbedder(hash, cache.NewEmbeddingCache(8, time.Minute), nil)
	s := NewSearcher(embedder, store, nil, nil)

	first, err := s.Search(ctx, "embeddings over http", 3, -1)
	require.NoError(t, err)
	second, err := s.Search(ctx, "embeddings over http", 3, -1)
	require.NoError(t, err)

	assert.Len(t, first, 3)
	assert.Equal(t, first, second)
}

func TestSearcher_Defaults(t *testing.T) {
	store := seed(t,
		storedDocument("a", domain.Chunk{Content: "a", Vector: []float32{1, 0}}),
		storedDocument("b", domain.Chunk{Content: "b", Vector: []float32{1, 0.1}}),
		storedDocument("c", domain.Chunk{Content: "c", Vector: []float32{1, 0.2}}),
		storedDocument("d", domain.Chunk{Content: "d", Vector: []float32{1, 0.3}}),
		storedDocument("e", domain.Chunk{Content: "e", Vector: []float32{0, 1}}),
	)
	s := NewSearcher(queryEmbedder(1, 0), store, nil, nil)

	topK, threshold := s.Defaults()
	assert.Equal(t, DefaultTopK, topK)
	assert.Equal(t, DefaultThreshold, threshold)

	results, err := s.SearchDefault(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = s.WithDefaults(10, 0.3).SearchDefault(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestSearcher_WithEmbedder(t *testing.T) {
	store := seed(t, storedDocument("doc", domain.Chunk{Content: "c", Vector: []float32{1, 0}}))
	base := NewSearcher(queryEmbedder(1, 0), store, nil, nil)
	derived := base.WithEmbedder(queryEmbedder(0, 1))

	results, err := derived.Search(context.Background(), "q", 3, 0.3)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = base.Search(context.Background(), "q", 3, 0.3)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
