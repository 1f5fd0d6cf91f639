package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/newsvec/internal/config"
	"github.com/hyperjump/newsvec/internal/embedding"
	"github.com/hyperjump/newsvec/internal/keyword"
	"github.com/hyperjump/newsvec/internal/models"
	"github.com/hyperjump/newsvec/internal/storage"
	"github.com/hyperjump/newsvec/internal/vector"
	"go.uber.org/zap"
)

const snippetLength = 240

// VectorSource provides the vector index matching the current embedding
// table, or nil while none is loaded.
type VectorSource interface {
	VectorIndex() vector.VectorIndex
}

// Engine runs hybrid (keyword + semantic) search.
type Engine struct {
	storage      storage.Storage
	keywordIndex keyword.KeywordIndex
	vectors      VectorSource
	embeddings   *embedding.Holder
	config       *config.SearchConfig
	cacheSize    int
	logger       *zap.Logger

	mu        sync.Mutex
	queryEmb  *embedding.CachedEmbedder
	queryFrom *embedding.Index
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithCacheSize sets how many query embeddings are cached per embedding table.
func WithCacheSize(n int) EngineOption {
	return func(e *Engine) { e.cacheSize = n }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	store storage.Storage,
	keywordIndex keyword.KeywordIndex,
	vectors VectorSource,
	embeddings *embedding.Holder,
	cfg *config.SearchConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		storage:      store,
		keywordIndex: keywordIndex,
		vectors:      vectors,
		embeddings:   embeddings,
		config:       cfg,
		cacheSize:    1000,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// queryEmbedder returns a cached embedder for table, replacing the cache when
// the table changed.
func (e *Engine) queryEmbedder(table *embedding.Index) *embedding.CachedEmbedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.queryFrom != table || e.queryEmb == nil {
		e.queryEmb = embedding.NewCachedEmbedder(table, e.cacheSize)
		e.queryFrom = table
	}
	return e.queryEmb
}

// Search runs hybrid search and returns article-level results. Semantic
// search is skipped while no embedding table is loaded, and for queries with
// no word in the table.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query, e.config); err != nil {
		return nil, err
	}
	candidates := e.config.TopKCandidates
	if need := query.Offset + query.Limit; candidates < need {
		candidates = need
	}

	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []*vector.VectorResult
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if query.KeywordEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := e.keywordIndex.Search(ctx, query.Query, candidates, &keyword.SearchOptions{
				TitleBoost: e.config.KeywordTitleBoost,
				Label:      query.Label,
				DataType:   query.DataType,
			})
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	if query.SemanticEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := e.semanticSearch(ctx, query.Query, candidates)
			if err != nil {
				errChan <- err
				return
			}
			semanticResults = results
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	keywordWeight, semanticWeight := e.config.KeywordWeight, e.config.SemanticWeight
	if !query.KeywordEnabled {
		keywordWeight = 0
	}
	if !query.SemanticEnabled {
		semanticWeight = 0
	}
	if sum := keywordWeight + semanticWeight; sum > 0 {
		keywordWeight, semanticWeight = keywordWeight/sum, semanticWeight/sum
	}
	fused := Fuse(NormalizeKeywordScores(keywordResults), NormalizeSemanticScores(semanticResults), keywordWeight, semanticWeight)

	terms := embedding.Tokenize(query.Query)
	matched := make([]*models.SearchResult, 0, len(fused))
	for _, r := range fused {
		if query.MinScore > 0 && r.Score < query.MinScore {
			continue
		}
		article, err := e.storage.GetArticle(ctx, r.ArticleID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				e.logger.Warn("search result lookup failed", zap.String("id", r.ArticleID), zap.Error(err))
			}
			continue
		}
		if (query.Label != "" && article.Label != query.Label) ||
			(query.DataType != "" && article.DataType != query.DataType) {
			continue
		}
		matched = append(matched, &models.SearchResult{
			Article:       article,
			Score:         r.Score,
			KeywordScore:  r.KeywordScore,
			SemanticScore: r.SemanticScore,
			Snippet:       Snippet(article.Content, terms, snippetLength),
		})
	}

	start := query.Offset
	end := query.Offset + query.Limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[start:end]
	for i, r := range page {
		r.Rank = start + i + 1
	}

	return &models.SearchResponse{
		Results:   page,
		Total:     len(matched),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Query,
	}, nil
}

func (e *Engine) semanticSearch(ctx context.Context, text string, k int) ([]*vector.VectorResult, error) {
	table := e.embeddings.Current()
	if table == nil {
		return nil, nil
	}
	vi := e.vectors.VectorIndex()
	if vi == nil || vi.Dimensions() != table.Dimensions() {
		return nil, nil
	}
	queryEmbedding, err := e.queryEmbedder(table).Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if isZero(queryEmbedding) {
		return nil, nil
	}
	results, err := vi.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return results, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
