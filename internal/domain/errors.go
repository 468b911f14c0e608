package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument is returned when a text yields no chunks.
	ErrEmptyDocument = errors.New("document has no extractable tokens")

	// ErrEmbeddingBackend covers an unreachable, failing or malformed embedding backend.
	ErrEmbeddingBackend = errors.New("embedding backend error")

	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// DocumentReadError reports a single stored record that could not be read back.
// It is never fatal to a scan over the whole store.
type DocumentReadError struct {
	Key string
	Err error
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("read document %s: %v", e.Key, e.Err)
}

func (e *DocumentReadError) Unwrap() error {
	return e.Err
}

// EmbeddingError wraps err as ErrEmbeddingBackend unless it already is one.
func EmbeddingError(err error) error {
	if err == nil || errors.Is(err, ErrEmbeddingBackend) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingBackend, err)
}
