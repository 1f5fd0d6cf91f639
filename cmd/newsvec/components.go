package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/newsvec/internal/config"
	"github.com/hyperjump/newsvec/internal/corpus"
	"github.com/hyperjump/newsvec/internal/embedding"
	"github.com/hyperjump/newsvec/internal/extract"
	"github.com/hyperjump/newsvec/internal/indexer"
	"github.com/hyperjump/newsvec/internal/keyword"
	"github.com/hyperjump/newsvec/internal/search"
	"github.com/hyperjump/newsvec/internal/storage"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	KeywordIndex keyword.KeywordIndex
	Embeddings   *embedding.Holder
	Loader       *embedding.Loader
	Engine       *search.Engine
	Indexer      *indexer.Indexer
	logger       *zap.Logger
}

// Close persists the vector index and releases storage and index handles.
func (c *Components) Close() {
	if c.Indexer != nil {
		if err := c.Indexer.SaveVectors(); err != nil {
			c.logger.Warn("vector index save failed", zap.Error(err))
		}
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func newLoader(cfg *config.Config, logger *zap.Logger) (*embedding.Loader, error) {
	policy, err := embedding.ParsePolicy(cfg.Embedding.MalformedRows)
	if err != nil {
		return nil, err
	}
	return embedding.NewLoader(
		embedding.NewResolver(cfg.Embedding.ResourceDirs...),
		embedding.WithPolicy(policy),
		embedding.WithDelimiter(cfg.Embedding.Delimiter),
		embedding.WithLogger(logger),
	), nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	template, err := extract.NewHTMLTemplate(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to compile template: %w", err)
	}
	loader, err := newLoader(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	holder := embedding.NewHolder(nil)
	builder := corpus.NewBuilder(template,
		corpus.WithWorkers(cfg.News.Workers),
		corpus.WithLogger(logger),
	)
	idx := indexer.NewIndexer(store, keywordIndex, holder, builder,
		indexer.WithLogger(logger),
		indexer.WithVectorPath(cfg.Storage.VectorIndexPath),
		indexer.WithExtensions(cfg.News.Extensions),
	)
	engine := search.NewEngine(store, keywordIndex, idx, holder, &cfg.Search,
		search.WithLogger(logger),
		search.WithCacheSize(cfg.Embedding.CacheSize),
	)

	return &Components{
		Storage:      store,
		KeywordIndex: keywordIndex,
		Embeddings:   holder,
		Loader:       loader,
		Engine:       engine,
		Indexer:      idx,
		logger:       logger,
	}, nil
}

// loadEmbeddings loads the configured table, publishes it and syncs the
// vector index. A missing table is not fatal: the returned report is nil and
// search runs keyword-only.
func (c *Components) loadEmbeddings(ctx context.Context, cfg *config.Config) (*embedding.LoadReport, error) {
	table, report, err := c.Loader.LoadResource(ctx, cfg.Embedding.Resource)
	if err != nil {
		if errors.Is(err, embedding.ErrResourceNotFound) {
			c.logger.Warn("embedding table not found; semantic search disabled",
				zap.String("resource", cfg.Embedding.Resource),
				zap.Strings("resource_dirs", cfg.Embedding.ResourceDirs),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("load embedding table: %w", err)
	}
	c.Embeddings.Replace(table)
	if err := c.Indexer.SyncEmbeddings(ctx); err != nil {
		return report, fmt.Errorf("sync vector index: %w", err)
	}
	return report, nil
}

// ensureCorpus builds the news corpus when nothing was built yet.
func (c *Components) ensureCorpus(ctx context.Context, cfg *config.Config) error {
	_, err := c.Storage.LatestBuild(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	start := time.Now()
	res, err := c.Indexer.BuildAndIndex(ctx, cfg.News.Directory)
	if err != nil {
		return fmt.Errorf("initial corpus build: %w", err)
	}
	c.logger.Info("initial corpus build complete",
		zap.String("directory", cfg.News.Directory),
		zap.Int("articles", len(res.Articles)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
