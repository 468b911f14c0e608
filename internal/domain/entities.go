package domain

import (
	"fmt"
	"time"
)

// Chunk is a window of a document's token stream paired with its embedding.
type Chunk struct {
	Content string    `json:"content"`
	Vector  []float32 `json:"vector"`
}

// Document is one knowledge-base record.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Vectors   []float32 `json:"vectors"`
	Chunks    []Chunk   `json:"chunks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Dimension returns the embedding dimension of the document.
func (d Document) Dimension() int {
	return len(d.Vectors)
}

// Validate checks the invariants every stored document must satisfy.
func (d Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDocument)
	}
	if len(d.Chunks) == 0 {
		return fmt.Errorf("%w: document %s has no chunks", ErrInvalidDocument, d.ID)
	}
	dim := d.Dimension()
	if dim == 0 {
		return fmt.Errorf("%w: document %s has no vector", ErrInvalidDocument, d.ID)
	}
	for i, c := range d.Chunks {
		if len(c.Vector) != dim {
			return fmt.Errorf("%w: document %s chunk %d has dimension %d, want %d",
				ErrInvalidDocument, d.ID, i, len(c.Vector), dim)
		}
	}
	return nil
}

// Summary returns the listing view of the document.
func (d Document) Summary() DocumentSummary {
	return DocumentSummary{
		ID:        d.ID,
		Title:     d.Title,
		Type:      d.Type,
		CreatedAt: d.CreatedAt,
	}
}

// Clone returns a deep copy so callers cannot mutate stored slices.
func (d Document) Clone() Document {
	out := d
	out.Vectors = append([]float32(nil), d.Vectors...)
	out.Chunks = make([]Chunk, len(d.Chunks))
	for i, c := range d.Chunks {
		out.Chunks[i] = Chunk{
			Content: c.Content,
			Vector:  append([]float32(nil), c.Vector...),
		}
	}
	return out
}

type DocumentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// SearchResult is a chunk that scored above the similarity threshold.
type SearchResult struct {
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	DocumentID string  `json:"documentId,omitempty"`
	Title      string  `json:"title,omitempty"`
}
