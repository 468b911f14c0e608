package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	model string
	calls int
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text))}, nil
}

func (e *countingEmbedder) ModelName() string {
	return e.model
}

func TestEmbeddingCache_GetPut(t *testing.T) {
	c := NewEmbeddingCache(10, time.Minute)

	_, ok := c.Get("m", "q")
	assert.False(t, ok)

	c.Put("m", "q", []float32{1, 2})
	vec, ok := c.Get("m", "q")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, vec)

	_, ok = c.Get("other-model", "q")
	assert.False(t, ok, "entries are keyed by model")
}

func TestEmbeddingCache_LRUEviction(t *testing.T) {
	c := NewEmbeddingCache(2, time.Minute)

	c.Put("m", "a", []float32{1})
	c.Put("m", "b", []float32{2})
	_, _ = c.Get("m", "a")
	c.Put("m", "c", []float32{3})

	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("m", "b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("m", "a")
	assert.True(t, ok)
}

func TestEmbeddingCache_TTL(t *testing.T) {
	c := NewEmbeddingCache(10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("m", "q", []float32{1})
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("m", "q")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{model: "mistral"}
	e := NewCachedEmbedder(inner, NewEmbeddingCache(10, time.Minute), nil)
	ctx := context.Background()

	first, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "mistral", e.ModelName())
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{model: "mistral", err: errors.New("down")}
	e := NewCachedEmbedder(inner, NewEmbeddingCache(10, time.Minute), nil)

	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	_, err = e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestEmbeddingCache_ReturnsCopies(t *testing.T) {
	c := NewEmbeddingCache(10, time.Minute)

	vec := []float32{1, 2}
	c.Put("m", "q", vec)
	vec[0] = 99

	got, ok := c.Get("m", "q")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, got)

	got[1] = 42
	again, _ := c.Get("m", "q")
	assert.Equal(t, []float32{1, 2}, again)
}

func TestEmbeddingCache_ConcurrentAccessStaysBounded(t *testing.T) {
	const maxSize = 8
	c := NewEmbeddingCache(maxSize, time.Minute)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				text := fmt.Sprintf("q%d", (i*7+w)%32)
				if _, ok := c.Get("m", text); !ok {
					c.Put("m", text, []float32{float32(i)})
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), maxSize)
	c.mu.RLock()
	defer c.mu.RUnlock()
	assert.Len(t, c.order, len(c.entries), "order must track exactly the cached keys")
}
