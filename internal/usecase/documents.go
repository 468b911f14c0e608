package usecase

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// Catalog answers listing and management requests against the store.
type Catalog struct {
	store  port.KnowledgeStore
	logger *zap.Logger
}

func NewCatalog(store port.KnowledgeStore, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{store: store, logger: logger}
}

// List returns summaries of all readable documents, newest first.
func (c *Catalog) List(ctx context.Context) ([]domain.DocumentSummary, error) {
	docs, skipped, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	for _, readErr := range skipped {
		c.logger.Warn("skipping unreadable document", zap.String("key", readErr.Key), zap.Error(readErr.Err))
	}

	summaries := make([]domain.DocumentSummary, len(docs))
	for i, doc := range docs {
		summaries[i] = doc.Summary()
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (domain.Document, error) {
	return c.store.Get(ctx, id)
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.logger.Info("document deleted", zap.String("document_id", id))
	return nil
}
