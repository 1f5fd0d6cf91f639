package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/newsvec/internal/config"
	"github.com/hyperjump/newsvec/internal/corpus"
	"github.com/hyperjump/newsvec/internal/embedding"
	"github.com/hyperjump/newsvec/internal/extract"
	"github.com/hyperjump/newsvec/internal/indexer"
	"github.com/hyperjump/newsvec/internal/keyword"
	"github.com/hyperjump/newsvec/internal/models"
	"github.com/hyperjump/newsvec/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTable = `markets,1,0,0
stocks,0.9,0.1,0
rose,0.7,0.3,0
oil,0,1,0
crude,0,0.95,0.05
rain,0,0,1
storm,0,0.1,0.9
`

type testEnv struct {
	engine *Engine
	holder *embedding.Holder
	idx    *indexer.Indexer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kw.Close() })

	table, _, err := embedding.NewLoader(nil).Load(ctx, strings.NewReader(testTable))
	require.NoError(t, err)
	holder := embedding.NewHolder(table)

	idx := indexer.NewIndexer(store, kw, holder, corpus.NewBuilder(extract.NewDefaultTemplate()))
	require.NoError(t, idx.SyncEmbeddings(ctx))

	news := filepath.Join(dir, "News")
	require.NoError(t, os.MkdirAll(news, 0755))
	docs := []struct{ name, title, body, dataType, label string }{
		{"a.htm", "Markets Rally", "stocks and markets rose sharply", "Training", "Positive"},
		{"b.htm", "Crude Slides", "oil prices fell on supply news", "Training", "Negative"},
		{"c.htm", "Storm Warning", "heavy rain expected", "Testing", "Negative"},
	}
	for _, d := range docs {
		html := fmt.Sprintf(`<title>%s</title><body><p>%s</p><datatype>%s</datatype><label>%s</label></body>`,
			d.title, d.body, d.dataType, d.label)
		require.NoError(t, os.WriteFile(filepath.Join(news, d.name), []byte(html), 0600))
	}
	_, err = idx.BuildAndIndex(ctx, news)
	require.NoError(t, err)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	engine := NewEngine(store, kw, idx, holder, &cfg.Search)
	return &testEnv{engine: engine, holder: holder, idx: idx}
}

func TestEngine_SearchHybrid(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.engine.Search(context.Background(), &models.SearchQuery{Query: "markets"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	top := resp.Results[0]
	assert.Equal(t, "Markets Rally", top.Article.Title)
	assert.Equal(t, 1, top.Rank)
	assert.Greater(t, top.KeywordScore, 0.0)
	assert.Greater(t, top.SemanticScore, 0.0)
	assert.Contains(t, top.Snippet, "markets")
}

func TestEngine_SemanticOnlyFindsRelatedWords(t *testing.T) {
	env := newTestEnv(t)
	// Only the table relates "oil" to the crude article's vector; keyword search is off.
	resp, err := env.engine.Search(context.Background(), &models.SearchQuery{Query: "oil", SemanticEnabled: true})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "Crude Slides", resp.Results[0].Article.Title)
	assert.Equal(t, 0.0, resp.Results[0].KeywordScore)
}

func TestEngine_Filters(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.engine.Search(context.Background(), &models.SearchQuery{
		Query: "oil rain markets", Label: "Negative", DataType: "Testing",
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Storm Warning", resp.Results[0].Article.Title)
	assert.Equal(t, 1, resp.Total)
}

func TestEngine_Paging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	all, err := env.engine.Search(ctx, &models.SearchQuery{Query: "markets oil rain", KeywordEnabled: true})
	require.NoError(t, err)
	require.Equal(t, 3, all.Total)

	page, err := env.engine.Search(ctx, &models.SearchQuery{Query: "markets oil rain", KeywordEnabled: true, Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, 2, page.Results[0].Rank)
	assert.Equal(t, all.Results[1].Article.ID, page.Results[0].Article.ID)
}

func TestEngine_NoEmbeddings(t *testing.T) {
	env := newTestEnv(t)
	env.holder.Replace(nil)
	require.NoError(t, env.idx.SyncEmbeddings(context.Background()))

	resp, err := env.engine.Search(context.Background(), &models.SearchQuery{Query: "markets"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, 0.0, r.SemanticScore)
	}
}

func TestEngine_EmptyQuery(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Search(context.Background(), &models.SearchQuery{})
	assert.Error(t, err)
}

func TestProcessQuery(t *testing.T) {
	cfg := &config.SearchConfig{DefaultLimit: 7, MaxLimit: 20, DefaultKeywordEnabled: true}
	q := &models.SearchQuery{Query: "x"}
	require.NoError(t, ProcessQuery(q, cfg))
	assert.Equal(t, 7, q.Limit)
	assert.True(t, q.KeywordEnabled)
	assert.False(t, q.SemanticEnabled)

	q = &models.SearchQuery{Query: "x", Limit: 50}
	require.NoError(t, ProcessQuery(q, cfg))
	assert.Equal(t, 20, q.Limit)
}
