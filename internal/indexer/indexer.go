// Package indexer keeps storage, the keyword index and the vector index in
// step with the news corpus.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hyperjump/newsvec/internal/corpus"
	"github.com/hyperjump/newsvec/internal/embedding"
	"github.com/hyperjump/newsvec/internal/fileid"
	"github.com/hyperjump/newsvec/internal/keyword"
	"github.com/hyperjump/newsvec/internal/models"
	"github.com/hyperjump/newsvec/internal/storage"
	"github.com/hyperjump/newsvec/internal/vector"
	"go.uber.org/zap"
)

// Indexer indexes articles into storage, keyword index, and vector index.
// Vectors come from the embedding table published by the holder; while no
// table is loaded, articles are stored and keyword-indexed only.
type Indexer struct {
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	embeddings   *embedding.Holder
	builder      *corpus.Builder
	extensions   []string
	vectorPath   string
	logger       *zap.Logger

	mu          sync.RWMutex
	vectorIndex vector.VectorIndex
	vectorsFor  *embedding.Index
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for indexing events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithVectorPath sets where the vector index is persisted.
func WithVectorPath(path string) IndexerOption {
	return func(idx *Indexer) { idx.vectorPath = path }
}

// WithExtensions limits IndexFile to documents with these extensions.
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) { idx.extensions = exts }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	store storage.Storage,
	keywordIndex keyword.KeywordIndex,
	embeddings *embedding.Holder,
	builder *corpus.Builder,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:      store,
		keywordIndex: keywordIndex,
		embeddings:   embeddings,
		builder:      builder,
		extensions:   corpus.DefaultExtensions,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// VectorIndex returns the vector index for the current embedding table, or
// nil when no table is loaded.
func (idx *Indexer) VectorIndex() vector.VectorIndex {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.vectorIndex
}

// SyncEmbeddings makes the vector index match the current embedding table.
// A new table gets a fresh index: the persisted one when it was written for
// this table and holds exactly the stored articles, otherwise one re-embedded
// from storage.
func (idx *Indexer) SyncEmbeddings(ctx context.Context) error {
	table := idx.embeddings.Current()
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if table == idx.vectorsFor && (table == nil || idx.vectorIndex != nil) {
		return nil
	}
	if table == nil || table.Dimensions() == 0 {
		idx.vectorIndex, idx.vectorsFor = nil, table
		return nil
	}

	vi, err := vector.NewMemoryIndex(table.Dimensions())
	if err != nil {
		return err
	}
	articles, err := idx.storage.ListArticles(ctx, storage.ArticleFilter{})
	if err != nil {
		return fmt.Errorf("list articles: %w", err)
	}
	if idx.vectorsFor == nil && !idx.loadPersisted(vi, table, articles) {
		vi.Reset()
	}
	if vi.Size() == 0 {
		if err := addVectors(ctx, vi, table, articles); err != nil {
			return err
		}
	}
	idx.vectorIndex, idx.vectorsFor = vi, table
	idx.logger.Info("vector index synced",
		zap.Int("vectors", vi.Size()),
		zap.Int("dimensions", table.Dimensions()),
	)
	return idx.saveVectorsLocked()
}

// loadPersisted fills vi from the vector file when its recorded table
// fingerprint matches table and its IDs are exactly those of articles.
func (idx *Indexer) loadPersisted(vi *vector.MemoryIndex, table *embedding.Index, articles []*models.Article) bool {
	if idx.vectorPath == "" {
		return false
	}
	stored, err := os.ReadFile(idx.fingerprintPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			idx.logger.Warn("ignoring persisted vector index", zap.Error(err))
		}
		return false
	}
	if strings.TrimSpace(string(stored)) != table.Fingerprint() {
		idx.logger.Info("persisted vectors belong to another embedding table, re-embedding")
		return false
	}
	if err := vi.Load(idx.vectorPath); err != nil {
		idx.logger.Warn("ignoring persisted vector index", zap.Error(err))
		return false
	}
	if !sameIDs(vi.IDs(), articles) {
		idx.logger.Info("persisted vectors do not match stored articles, re-embedding",
			zap.Int("vectors", vi.Size()),
			zap.Int("articles", len(articles)),
		)
		return false
	}
	return true
}

func sameIDs(ids []string, articles []*models.Article) bool {
	if len(ids) != len(articles) {
		return false
	}
	want := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		want[a.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := want[id]; !ok {
			return false
		}
	}
	return true
}

func (idx *Indexer) fingerprintPath() string {
	return idx.vectorPath + ".table"
}

func addVectors(ctx context.Context, vi vector.VectorIndex, table embedding.Embedder, articles []*models.Article) error {
	if len(articles) == 0 {
		return nil
	}
	texts := make([]string, len(articles))
	ids := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = embeddingText(a)
		ids[i] = a.ID
	}
	vecs, err := table.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if err := vi.Add(ctx, ids, vecs); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	return nil
}

func embeddingText(a *models.Article) string {
	return a.Title + "\n" + a.Content
}

// IndexCorpus replaces everything indexed with the articles of res.
func (idx *Indexer) IndexCorpus(ctx context.Context, res *corpus.Result) error {
	previous, err := idx.storage.ListArticles(ctx, storage.ArticleFilter{})
	if err != nil {
		return fmt.Errorf("list previous articles: %w", err)
	}
	if err := idx.storage.ReplaceCorpus(ctx, res.Summary(), res.Articles); err != nil {
		return fmt.Errorf("failed to store corpus: %w", err)
	}
	for _, a := range previous {
		if err := idx.keywordIndex.Delete(ctx, a.ID); err != nil {
			return fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}
	if err := idx.keywordIndex.IndexBatch(ctx, res.Articles); err != nil {
		return fmt.Errorf("failed to index keywords: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.vectorIndex == nil {
		if err := idx.discardPersistedLocked(); err != nil {
			return err
		}
	} else {
		idx.vectorIndex.Reset()
		if err := addVectors(ctx, idx.vectorIndex, idx.vectorsFor, res.Articles); err != nil {
			return err
		}
		if err := idx.saveVectorsLocked(); err != nil {
			return err
		}
	}
	idx.logger.Info("corpus indexed",
		zap.String("build_id", res.BuildID),
		zap.Int("articles", len(res.Articles)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return nil
}

// BuildAndIndex builds the corpus under root and indexes it.
func (idx *Indexer) BuildAndIndex(ctx context.Context, root string) (*corpus.Result, error) {
	res, err := idx.builder.BuildDirectory(ctx, root, idx.extensions)
	if err != nil {
		return nil, err
	}
	if err := idx.IndexCorpus(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// IndexFile re-extracts the document at path and upserts its article. A
// document that no longer extracts is removed from the indices and the
// *corpus.SkippedDocument is returned.
func (idx *Indexer) IndexFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	if !corpus.HasExtension(absPath, idx.extensions) {
		return fmt.Errorf("extension %q not in allowed list", filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", absPath)
	}
	idx.logger.Debug("indexer indexing file", zap.String("path", absPath))

	article, err := idx.builder.Document(absPath)
	if err != nil {
		var skipped *corpus.SkippedDocument
		if errors.As(err, &skipped) {
			idx.logger.Warn("document no longer extracts", zap.String("path", absPath), zap.Error(err))
			if delErr := idx.DeleteFile(ctx, absPath); delErr != nil {
				return delErr
			}
		}
		return err
	}
	if existing, getErr := idx.storage.GetArticle(ctx, article.ID); getErr == nil {
		article.BuildID = existing.BuildID
		article.CreatedAt = existing.CreatedAt
	}
	if err := idx.storage.UpsertArticle(ctx, article); err != nil {
		return fmt.Errorf("failed to store article: %w", err)
	}
	if err := idx.keywordIndex.Index(ctx, article); err != nil {
		return fmt.Errorf("failed to index keywords: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.vectorIndex != nil {
		if err := addVectors(ctx, idx.vectorIndex, idx.vectorsFor, []*models.Article{article}); err != nil {
			return err
		}
	}
	idx.logger.Debug("indexer file indexed", zap.String("path", absPath), zap.String("id", article.ID))
	return nil
}

// DeleteFile removes the article for path from all indices and storage.
func (idx *Indexer) DeleteFile(ctx context.Context, path string) error {
	id := fileid.ArticleID(path)
	idx.logger.Debug("indexer deleting article", zap.String("path", path), zap.String("id", id))
	if err := idx.keywordIndex.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	if vi := idx.VectorIndex(); vi != nil {
		if err := vi.Remove(ctx, []string{id}); err != nil {
			return fmt.Errorf("failed to delete from vector index: %w", err)
		}
	}
	if err := idx.storage.DeleteArticle(ctx, id); err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	return nil
}

// DeleteDirectory removes every stored article whose document lives under dir.
func (idx *Indexer) DeleteDirectory(ctx context.Context, dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	articles, err := idx.storage.ListArticles(ctx, storage.ArticleFilter{})
	if err != nil {
		return fmt.Errorf("list articles: %w", err)
	}
	removed := 0
	for _, a := range articles {
		if !within(absDir, a.Path) {
			continue
		}
		if err := idx.DeleteFile(ctx, a.Path); err != nil {
			return err
		}
		removed++
	}
	idx.logger.Debug("indexer directory removed", zap.String("path", absDir), zap.Int("articles", removed))
	return nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// SaveVectors persists the vector index, if any.
func (idx *Indexer) SaveVectors() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.saveVectorsLocked()
}

// saveVectorsLocked writes the vectors and then the fingerprint of the table
// they were embedded with. The old fingerprint is removed first so an
// interrupted save is never trusted on the next start.
func (idx *Indexer) saveVectorsLocked() error {
	if idx.vectorIndex == nil || idx.vectorPath == "" {
		return nil
	}
	if err := removeIfExists(idx.fingerprintPath()); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	if err := idx.vectorIndex.Save(idx.vectorPath); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	if err := os.WriteFile(idx.fingerprintPath(), []byte(idx.vectorsFor.Fingerprint()+"\n"), 0644); err != nil {
		return fmt.Errorf("save vector index fingerprint: %w", err)
	}
	return nil
}

// discardPersistedLocked removes vector files that no longer describe the corpus.
func (idx *Indexer) discardPersistedLocked() error {
	if idx.vectorPath == "" {
		return nil
	}
	for _, path := range []string{idx.fingerprintPath(), idx.vectorPath} {
		if err := removeIfExists(path); err != nil {
			return fmt.Errorf("discard vector index: %w", err)
		}
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
