package port

import (
	"context"

	"ragchat/internal/domain"
)

// Searcher ranks stored chunks against a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, threshold float64) ([]domain.SearchResult, error)
}
