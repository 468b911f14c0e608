// Package metrics holds the Prometheus instruments for indexing, search and
// embedding calls.
//
// All recorder methods are safe on a nil *Metrics so components can run
// without instrumentation.
//
// Metrics:
//   - ragchat_documents_indexed_total - documents persisted by the indexer
//   - ragchat_chunks_indexed_total - chunks persisted by the indexer
//   - ragchat_index_failures_total{reason} - failed indexing attempts
//   - ragchat_searches_total{outcome} - search calls by outcome
//   - ragchat_search_duration_seconds - search latency
//   - ragchat_search_results - number of results returned per search
//   - ragchat_documents_skipped_total - unreadable records skipped during scans
//   - ragchat_embedding_requests_total{status} - embedding backend calls
//   - ragchat_embedding_duration_seconds - embedding backend latency
//   - ragchat_query_cache_total{result} - query embedding cache lookups
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ragchat/internal/domain"
)

type Metrics struct {
	DocumentsIndexed  prometheus.Counter
	ChunksIndexed     prometheus.Counter
	IndexFailures     *prometheus.CounterVec
	Searches          *prometheus.CounterVec
	SearchDuration    prometheus.Histogram
	SearchResults     prometheus.Histogram
	DocumentsSkipped  prometheus.Counter
	EmbeddingRequests *prometheus.CounterVec
	EmbeddingDuration prometheus.Histogram
	QueryCache        *prometheus.CounterVec
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsIndexed: f.NewCounter(prometheus.CounterOpts{
			Name: "ragchat_documents_indexed_total",
			Help: "Total number of documents indexed",
		}),
		ChunksIndexed: f.NewCounter(prometheus.CounterOpts{
			Name: "ragchat_chunks_indexed_total",
			Help: "Total number of chunks indexed",
		}),
		IndexFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragchat_index_failures_total",
			Help: "Total number of failed indexing attempts",
		}, []string{"reason"}), // "empty", "embedding", "store"
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragchat_searches_total",
			Help: "Total number of searches",
		}, []string{"outcome"}), // "hit", "empty", "error"
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragchat_search_duration_seconds",
			Help:    "Duration of knowledge base searches in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		SearchResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragchat_search_results",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		}),
		DocumentsSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "ragchat_documents_skipped_total",
			Help: "Total number of unreadable document records skipped",
		}),
		EmbeddingRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragchat_embedding_requests_total",
			Help: "Total number of embedding backend requests",
		}, []string{"status"}), // "ok", "error"
		EmbeddingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragchat_embedding_duration_seconds",
			Help:    "Duration of embedding backend requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		QueryCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragchat_query_cache_total",
			Help: "Query embedding cache lookups",
		}, []string{"result"}), // "hit", "miss"
	}
}

func (m *Metrics) RecordIndexed(chunks int) {
	if m == nil {
		return
	}
	m.DocumentsIndexed.Inc()
	m.ChunksIndexed.Add(float64(chunks))
}

// RecordIndexFailure classifies err into a failure reason.
func (m *Metrics) RecordIndexFailure(err error) {
	if m == nil || err == nil {
		return
	}
	reason := "store"
	switch {
	case errors.Is(err, domain.ErrEmptyDocument):
		reason = "empty"
	case errors.Is(err, domain.ErrEmbeddingBackend):
		reason = "embedding"
	}
	m.IndexFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordSearch(d time.Duration, results int, err error) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
	switch {
	case err != nil:
		m.Searches.WithLabelValues("error").Inc()
		return
	case results == 0:
		m.Searches.WithLabelValues("empty").Inc()
	default:
		m.Searches.WithLabelValues("hit").Inc()
	}
	m.SearchResults.Observe(float64(results))
}

func (m *Metrics) RecordSkipped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DocumentsSkipped.Add(float64(n))
}

func (m *Metrics) RecordEmbedding(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.EmbeddingDuration.Observe(d.Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EmbeddingRequests.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.QueryCache.WithLabelValues(result).Inc()
}
