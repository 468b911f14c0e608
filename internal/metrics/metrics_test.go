package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"ragchat/internal/domain"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIndexed(3)
		m.RecordIndexFailure(domain.ErrEmptyDocument)
		m.RecordSearch(time.Millisecond, 1, nil)
		m.RecordSkipped(2)
		m.RecordEmbedding(time.Millisecond, nil)
		m.RecordCache(true)
	})
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordIndexed(3)
	m.RecordIndexed(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocumentsIndexed))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ChunksIndexed))

	m.RecordIndexFailure(domain.ErrEmptyDocument)
	m.RecordIndexFailure(fmt.Errorf("wrap: %w", domain.ErrEmbeddingBackend))
	m.RecordIndexFailure(errors.New("disk full"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexFailures.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexFailures.WithLabelValues("embedding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexFailures.WithLabelValues("store")))

	m.RecordSearch(time.Millisecond, 0, nil)
	m.RecordSearch(time.Millisecond, 2, nil)
	m.RecordSearch(time.Millisecond, 0, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("error")))

	m.RecordSkipped(0)
	m.RecordSkipped(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DocumentsSkipped))

	m.RecordEmbedding(time.Millisecond, nil)
	m.RecordEmbedding(time.Millisecond, errors.New("down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("error")))

	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordCache(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueryCache.WithLabelValues("miss")))
}
