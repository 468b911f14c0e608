package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ragchat/internal/adapter/extract"
	"ragchat/internal/domain"
	"ragchat/internal/metrics"
	"ragchat/internal/port"
	"ragchat/internal/vecmath"
)

// Indexer turns raw text into stored, embedded documents.
type Indexer struct {
	chunker     port.Chunker
	embedder    port.Embedder
	store       port.KnowledgeStore
	logger      *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time
	newID       func() string
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithConcurrency bounds how many chunks are embedded at once. Values
// below 2 embed serially.
func WithConcurrency(n int) IndexerOption {
	return func(i *Indexer) { i.concurrency = n }
}

func WithClock(now func() time.Time) IndexerOption {
	return func(i *Indexer) { i.now = now }
}

func WithIDFunc(newID func() string) IndexerOption {
	return func(i *Indexer) { i.newID = newID }
}

// NewIndexer creates an indexer. logger and m may be nil.
func NewIndexer(
	chunker port.Chunker,
	embedder port.Embedder,
	store port.KnowledgeStore,
	logger *zap.Logger,
	m *metrics.Metrics,
	opts ...IndexerOption,
) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	i := &Indexer{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		logger:      logger,
		metrics:     m,
		concurrency: 1,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Index chunks and embeds text and persists it as a new document. Nothing
// is written unless every chunk embeds successfully.
func (i *Indexer) Index(ctx context.Context, text, docType, title string) (domain.Document, error) {
	chunks, mean, err := i.embedText(ctx, text)
	if err != nil {
		i.metrics.RecordIndexFailure(err)
		return domain.Document{}, err
	}

	now := i.now().UTC()
	doc := domain.Document{
		ID:        i.newID(),
		Title:     title,
		Content:   text,
		Type:      docType,
		Vectors:   mean,
		Chunks:    chunks,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := i.store.Put(ctx, doc); err != nil {
		i.metrics.RecordIndexFailure(err)
		return domain.Document{}, fmt.Errorf("failed to store document: %w", err)
	}

	i.metrics.RecordIndexed(len(chunks))
	i.logger.Info("document indexed",
		zap.String("document_id", doc.ID),
		zap.String("title", title),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", len(mean)),
	)
	return doc, nil
}

// IndexFile extracts the text of a txt/doc/docx file and indexes it under
// the file's name.
func (i *Indexer) IndexFile(ctx context.Context, path string) (domain.Document, error) {
	ex, err := extract.FromFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	return i.Index(ctx, ex.Content, ex.Type, ex.Title)
}

// Reindex re-embeds a stored document's content with the current chunker and
// embedder. The id, title, type and creation time are kept.
func (i *Indexer) Reindex(ctx context.Context, doc domain.Document) (domain.Document, error) {
	chunks, mean, err := i.embedText(ctx, doc.Content)
	if err != nil {
		i.metrics.RecordIndexFailure(err)
		return domain.Document{}, err
	}

	updated := domain.Document{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		Type:      doc.Type,
		Vectors:   mean,
		Chunks:    chunks,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: i.now().UTC(),
	}
	if err := i.store.Put(ctx, updated); err != nil {
		i.metrics.RecordIndexFailure(err)
		return domain.Document{}, fmt.Errorf("failed to store document: %w", err)
	}

	i.metrics.RecordIndexed(len(chunks))
	i.logger.Info("document reindexed",
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(chunks)),
	)
	return updated, nil
}

// IndexResult contains the results of a batch indexing operation.
type IndexResult struct {
	FilesIndexed  int
	FilesFailed   int
	ChunksCreated int
	Documents     []domain.Document
	Errors        []string
}

// ProgressFunc is called after each file or document is processed.
type ProgressFunc func(done, total int)

// IndexDir indexes every file the walker finds under root. A file that
// fails is recorded in the result and does not stop the batch.
func (i *Indexer) IndexDir(ctx context.Context, walker port.FileWalker, root string, progress ProgressFunc) (*IndexResult, error) {
	files, err := walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	result := &IndexResult{}
	for n, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		doc, err := i.IndexFile(ctx, file.Path)
		if err != nil {
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to index %s: %v", file.Path, err))
			i.logger.Warn("file not indexed", zap.String("path", file.Path), zap.Error(err))
		} else {
			result.FilesIndexed++
			result.ChunksCreated += len(doc.Chunks)
			result.Documents = append(result.Documents, doc)
		}

		if progress != nil {
			progress(n+1, len(files))
		}
	}
	return result, nil
}

// ReindexResult summarises a ReindexAll run.
type ReindexResult struct {
	Reindexed int
	Failed    int
	Skipped   int
	Errors    []string
}

// ReindexAll re-embeds every readable document in the store.
func (i *Indexer) ReindexAll(ctx context.Context, progress ProgressFunc) (*ReindexResult, error) {
	docs, skipped, err := i.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := &ReindexResult{Skipped: len(skipped)}
	for _, readErr := range skipped {
		i.logger.Warn("skipping unreadable document", zap.String("key", readErr.Key), zap.Error(readErr.Err))
	}

	for n, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := i.Reindex(ctx, doc); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to reindex %s: %v", doc.ID, err))
		} else {
			result.Reindexed++
		}
		if progress != nil {
			progress(n+1, len(docs))
		}
	}
	return result, nil
}

func (i *Indexer) embedText(ctx context.Context, text string) ([]domain.Chunk, []float32, error) {
	pieces := i.chunker.Chunk(text)
	if len(pieces) == 0 {
		return nil, nil, domain.ErrEmptyDocument
	}

	vectors, err := i.embedAll(ctx, pieces)
	if err != nil {
		return nil, nil, domain.EmbeddingError(err)
	}

	mean, err := vecmath.Mean(vectors)
	if err != nil {
		return nil, nil, domain.EmbeddingError(fmt.Errorf("inconsistent chunk embeddings: %w", err))
	}

	chunks := make([]domain.Chunk, len(pieces))
	for n, piece := range pieces {
		chunks[n] = domain.Chunk{Content: piece, Vector: vectors[n]}
	}
	return chunks, mean, nil
}

// embedAll returns one vector per piece, in piece order.
func (i *Indexer) embedAll(ctx context.Context, pieces []string) ([][]float32, error) {
	vectors := make([][]float32, len(pieces))

	if i.concurrency < 2 {
		for n, piece := range pieces {
			vec, err := i.embedder.Embed(ctx, piece)
			if err != nil {
				return nil, fmt.Errorf("chunk %d: %w", n, err)
			}
			vectors[n] = vec
		}
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for n, piece := range pieces {
		g.Go(func() error {
			vec, err := i.embedder.Embed(gctx, piece)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", n, err)
			}
			vectors[n] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
