package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ragchat/config"
	"ragchat/internal/adapter/analyzer"
	"ragchat/internal/adapter/cache"
	"ragchat/internal/adapter/chunker"
	"ragchat/internal/adapter/embedding"
	"ragchat/internal/adapter/filestore"
	"ragchat/internal/adapter/memstore"
	"ragchat/internal/adapter/store"
	"ragchat/internal/logging"
	"ragchat/internal/metrics"
	"ragchat/internal/port"
	"ragchat/internal/usecase"
)

// app holds the components shared by every command.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	store       port.KnowledgeStore
	bolt        *store.BoltStore
	embedderFor func(model string) port.Embedder
	indexer     *usecase.Indexer
	searcher    *usecase.Searcher
	catalog     *usecase.Catalog
}

func newApp(cfg *config.Config, dataDir string) (*app, error) {
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  m,
	}

	if err := a.openStore(dataDir); err != nil {
		return nil, err
	}

	tokenizer, err := analyzer.New(cfg.Index.Tokenizer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	chk := chunker.NewTokenChunker(cfg.Index.ChunkTokens, tokenizer)

	queryCache := cache.NewEmbeddingCache(cfg.Embedding.CacheSize, cfg.CacheTTL())
	var embedder port.Embedder
	switch cfg.Embedding.Provider {
	case "hash":
		hash := embedding.NewHashEmbedder(cfg.Embedding.Dimension)
		embedder = hash
		a.embedderFor = func(string) port.Embedder {
			return cache.NewCachedEmbedder(hash, queryCache, m)
		}
	default:
		ollama := embedding.NewOllamaEmbedder(embedding.OllamaConfig{
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			Timeout:   cfg.EmbeddingTimeout(),
			RateLimit: cfg.Embedding.RateLimit,
			Burst:     cfg.Embedding.Burst,
		}, m)
		embedder = ollama
		a.embedderFor = func(model string) port.Embedder {
			return cache.NewCachedEmbedder(ollama.WithModel(model), queryCache, m)
		}
	}

	a.indexer = usecase.NewIndexer(chk, embedder, a.store, logger.Named("indexer"), m,
		usecase.WithConcurrency(cfg.Index.Concurrency))
	a.searcher = usecase.NewSearcher(cache.NewCachedEmbedder(embedder, queryCache, m), a.store, logger.Named("search"), m).
		WithDefaults(cfg.Retrieve.TopK, cfg.Retrieve.SimilarityThreshold)
	a.catalog = usecase.NewCatalog(a.store, logger.Named("catalog"))

	logger.Debug("knowledge base ready",
		zap.String("backend", cfg.Store.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", embedder.ModelName()),
		zap.String("tokenizer", tokenizer.Name()),
	)
	return a, nil
}

func (a *app) openStore(dataDir string) error {
	switch a.cfg.Store.Backend {
	case "memory":
		a.store = memstore.NewMemoryStore()
		return nil
	case "file":
		st, err := filestore.NewStore(a.cfg.StoreDir(dataDir))
		if err != nil {
			return err
		}
		a.store = st
		return nil
	}

	if err := config.EnsureDataDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.NewBoltStore(a.cfg.StorePath(dataDir))
	if err != nil {
		return fmt.Errorf("failed to open knowledge store: %w", err)
	}

	result, err := st.CheckMigration(a.cfg)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to check migration: %w", err)
	}
	switch {
	case result.NeedsRebuild:
		a.logger.Warn("stored embeddings do not match the current configuration, run `ragchat reindex`",
			zap.String("reason", result.Reason))
	case result.NeedsMigration:
		a.logger.Info("running schema migration", zap.String("reason", result.Reason))
		if err := st.Migrate(a.cfg); err != nil {
			st.Close()
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	a.bolt = st
	a.store = st
	return nil
}

func (a *app) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	logging.Sync(a.logger)
	return err
}
