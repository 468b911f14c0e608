package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"ragchat/internal/domain"
	"ragchat/internal/metrics"
	"ragchat/internal/port"
	"ragchat/internal/vecmath"
)

const (
	DefaultTopK      = 3
	DefaultThreshold = 0.3
)

// Searcher ranks every stored chunk by cosine similarity to a query.
type Searcher struct {
	embedder  port.Embedder
	store     port.KnowledgeStore
	logger    *zap.Logger
	metrics   *metrics.Metrics
	topK      int
	threshold float64
}

// NewSearcher creates a searcher using DefaultTopK and DefaultThreshold for
// SearchDefault. logger and m may be nil.
func NewSearcher(embedder port.Embedder, store port.KnowledgeStore, logger *zap.Logger, m *metrics.Metrics) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		embedder:  embedder,
		store:     store,
		logger:    logger,
		metrics:   m,
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
	}
}

// WithDefaults returns a copy of s whose SearchDefault uses topK and threshold.
func (s *Searcher) WithDefaults(topK int, threshold float64) *Searcher {
	c := *s
	c.topK = topK
	c.threshold = threshold
	return &c
}

// WithEmbedder returns a copy of s that embeds queries with e.
func (s *Searcher) WithEmbedder(e port.Embedder) *Searcher {
	c := *s
	c.embedder = e
	return &c
}

func (s *Searcher) Defaults() (int, float64) {
	return s.topK, s.threshold
}

// SearchDefault searches with the configured top-k and threshold.
func (s *Searcher) SearchDefault(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return s.Search(ctx, query, s.topK, s.threshold)
}

// Search returns at most topK chunks scoring strictly above threshold,
// best first. Equal scores keep store scan order.
func (s *Searcher) Search(ctx context.Context, query string, topK int, threshold float64) ([]domain.SearchResult, error) {
	start := time.Now()
	results, err := s.search(ctx, query, topK, threshold)
	s.metrics.RecordSearch(time.Since(start), len(results), err)
	return results, err
}

func (s *Searcher) search(ctx context.Context, query string, topK int, threshold float64) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return []domain.SearchResult{}, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", domain.EmbeddingError(err))
	}

	docs, skipped, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	for _, readErr := range skipped {
		s.logger.Warn("skipping unreadable document",
			zap.String("key", readErr.Key),
			zap.Error(readErr.Err),
		)
	}
	s.metrics.RecordSkipped(len(skipped))

	results := make([]domain.SearchResult, 0)
	for _, doc := range docs {
		for n, chunk := range doc.Chunks {
			score, err := vecmath.Cosine(queryVec, chunk.Vector)
			if err != nil {
				s.logger.Debug("skipping chunk",
					zap.String("document_id", doc.ID),
					zap.Int("chunk", n),
					zap.Int("query_dimension", len(queryVec)),
					zap.Int("chunk_dimension", len(chunk.Vector)),
				)
				continue
			}
			if score > threshold {
				results = append(results, domain.SearchResult{
					Content:    chunk.Content,
					Score:      score,
					DocumentID: doc.ID,
					Title:      doc.Title,
				})
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
