package port

import (
	"context"

	"ragchat/internal/domain"
)

// KnowledgeStore persists one record per document.
type KnowledgeStore interface {
	// Put validates and writes the document atomically, replacing any record with the same id.
	Put(ctx context.Context, doc domain.Document) error

	Get(ctx context.Context, id string) (domain.Document, error)

	// List returns every readable document in a stable order. Records that fail to
	// decode or validate are returned in the second value instead of failing the call.
	List(ctx context.Context) ([]domain.Document, []*domain.DocumentReadError, error)

	Delete(ctx context.Context, id string) error

	Close() error
}
