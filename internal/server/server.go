// Package server provides the HTTP API for newsvec.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/newsvec/internal/config"
	"github.com/hyperjump/newsvec/internal/embedding"
	"github.com/hyperjump/newsvec/internal/indexer"
	"github.com/hyperjump/newsvec/internal/search"
	"github.com/hyperjump/newsvec/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the newsvec API.
type Server struct {
	engine     *search.Engine
	indexer    *indexer.Indexer
	storage    storage.Storage
	embeddings *embedding.Holder
	loader     *embedding.Loader
	config     *config.Config
	logger     *zap.Logger
	server     *http.Server

	// reloadMu serializes table reloads and corpus builds.
	reloadMu   sync.Mutex
	lastReport *embedding.LoadReport
}

// Option configures a Server.
type Option func(*Server)

// WithLoadReport records the report of the table loaded at startup for /status.
func WithLoadReport(r *embedding.LoadReport) Option {
	return func(s *Server) { s.lastReport = r }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	store storage.Storage,
	embeddings *embedding.Holder,
	loader *embedding.Loader,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		engine:     engine,
		indexer:    idx,
		storage:    store,
		embeddings: embeddings,
		loader:     loader,
		config:     cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/stopwords", s.handleStopwords)

		r.Get("/vocabulary", s.handleVocabulary)
		r.Get("/vectors/{word}", s.handleVector)
		r.Post("/embeddings/reload", s.handleReloadEmbeddings)

		r.Get("/articles", s.handleListArticles)
		r.Get("/articles/{id}", s.handleGetArticle)
		r.Post("/corpus/build", s.handleBuildCorpus)
		r.Get("/corpus/build", s.handleLatestBuild)

		r.Post("/search", s.handleSearch)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
