package port

import "context"

// Embedder generates a vector embedding for text.
type Embedder interface {
	// Embed blocks until the backend returns a vector or fails.
	// Failures wrap domain.ErrEmbeddingBackend.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}
