// Package server exposes the knowledge base over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ragchat/internal/adapter/extract"
	"ragchat/internal/domain"
	"ragchat/internal/port"
	"ragchat/internal/usecase"
)

// Server provides the knowledge base HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	MaxUploadBytes int64
}

// Deps are the use cases the handlers call.
type Deps struct {
	Indexer  *usecase.Indexer
	Searcher *usecase.Searcher
	Catalog  *usecase.Catalog
	// EmbedderFor returns an embedder for a per-request model override.
	// When nil the model field of search requests is ignored.
	EmbedderFor func(model string) port.Embedder
	// Gatherer backs GET /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Indexer == nil || deps.Searcher == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("indexer, searcher and catalog are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 5000,
		}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	k := s.echo.Group("/knowledge")
	k.GET("", s.handleList)
	k.POST("/upload", s.handleUpload)
	k.POST("/search", s.handleSearch)
	k.GET("/:id", s.handleGet)
	k.DELETE("/:id", s.handleDelete)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// SearchRequest is the request body for POST /knowledge/search.
type SearchRequest struct {
	Query     string   `json:"query"`
	TopK      *int     `json:"topK,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Model     string   `json:"model,omitempty"`
}

// SearchResponse is the response body for POST /knowledge/search.
type SearchResponse struct {
	Results []domain.SearchResult `json:"results"`
	Context string                `json:"context"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleList(c echo.Context) error {
	summaries, err := s.deps.Catalog.List(c.Request().Context())
	if err != nil {
		return s.fail(err)
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleGet(c echo.Context) error {
	doc, err := s.deps.Catalog.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleDelete(c echo.Context) error {
	if err := s.deps.Catalog.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUpload(c echo.Context) error {
	req := c.Request()
	if req.ContentLength > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload exceeds size limit")
	}
	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.config.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "no file provided")
	}
	if !extract.Supported(fh.Filename) {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("unsupported file type, allowed: %s", strings.Join(extract.Allowed, ", ")))
	}

	f, err := fh.Open()
	if err != nil {
		return s.fail(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return s.fail(err)
	}

	ex, err := extract.FromBytes(fh.Filename, data)
	if err != nil {
		return s.fail(err)
	}

	doc, err := s.deps.Indexer.Index(req.Context(), ex.Content, ex.Type, ex.Title)
	if err != nil {
		return s.fail(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	searcher := s.deps.Searcher
	if req.Model != "" && s.deps.EmbedderFor != nil {
		searcher = searcher.WithEmbedder(s.deps.EmbedderFor(req.Model))
	}

	topK, threshold := searcher.Defaults()
	if req.TopK != nil {
		topK = *req.TopK
	}
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results, err := searcher.Search(c.Request().Context(), req.Query, topK, threshold)
	if err != nil {
		return s.fail(err)
	}
	return c.JSON(http.StatusOK, SearchResponse{
		Results: results,
		Context: usecase.BuildContext(results),
	})
}

// fail maps domain errors onto HTTP status codes.
func (s *Server) fail(err error) error {
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	case errors.Is(err, domain.ErrUnsupportedFormat), errors.Is(err, domain.ErrInvalidDocument):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmptyDocument):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "document has no text to index")
	case errors.Is(err, domain.ErrEmbeddingBackend):
		s.logger.Error("embedding backend failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "embedding backend unavailable")
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Handler returns the router, for embedding in tests or other servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
