package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/newsvec/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "sub", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testArticle(id, name, title, label string) *models.Article {
	return &models.Article{
		ID:   id,
		Path: "/news/" + name,
		Name: name,
		ArticleRecord: models.ArticleRecord{
			Title:    title,
			Content:  "content of " + title,
			DataType: "Training",
			Label:    label,
		},
	}
}

func TestSQLiteStorage_ArticleCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testArticle("article:1", "a.htm", "Title", "Positive")
	require.NoError(t, store.UpsertArticle(ctx, a))
	assert.False(t, a.CreatedAt.IsZero())

	got, err := store.GetArticle(ctx, "article:1")
	require.NoError(t, err)
	assert.Equal(t, "Title", got.Title)
	assert.Equal(t, "content of Title", got.Content)
	assert.Equal(t, "a.htm", got.Name)
	assert.Equal(t, "", got.BuildID)

	a.Title = "Updated"
	require.NoError(t, store.UpsertArticle(ctx, a))
	got, err = store.GetArticle(ctx, "article:1")
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)

	n, err := store.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.DeleteArticle(ctx, "article:1"))
	_, err = store.GetArticle(ctx, "article:1")
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, store.DeleteArticle(ctx, "article:1"))
}

func TestSQLiteStorage_ListArticlesOrderAndFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, a := range []*models.Article{
		testArticle("3", "c.htm", "C", "Negative"),
		testArticle("1", "a.htm", "A", "Positive"),
		testArticle("2", "b.htm", "B", "Negative"),
	} {
		require.NoError(t, store.UpsertArticle(ctx, a))
	}

	all, err := store.ListArticles(ctx, ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{all[0].Title, all[1].Title, all[2].Title})

	page, err := store.ListArticles(ctx, ArticleFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "B", page[0].Title)

	neg, err := store.ListArticles(ctx, ArticleFilter{Label: "Negative"})
	require.NoError(t, err)
	require.Len(t, neg, 2)
	assert.Equal(t, "B", neg[0].Title)

	none, err := store.ListArticles(ctx, ArticleFilter{DataType: "Testing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStorage_ReplaceCorpus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.LatestBuild(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	start := time.Now().UTC()
	first := &models.Build{
		ID: "b1", Root: "/news", Documents: 3, Articles: 2,
		Skipped:   []models.SkippedDocument{{Path: "/news/x.htm", Kind: "extract", Reason: "field marker not found: label"}},
		StartedAt: start, FinishedAt: start.Add(time.Second),
	}
	require.NoError(t, store.ReplaceCorpus(ctx, first, []*models.Article{
		testArticle("1", "a.htm", "A", "P"),
		testArticle("2", "b.htm", "B", "N"),
	}))

	second := &models.Build{
		ID: "b2", Root: "/news", Documents: 1, Articles: 1,
		StartedAt: start.Add(time.Minute), FinishedAt: start.Add(2 * time.Minute),
	}
	require.NoError(t, store.ReplaceCorpus(ctx, second, []*models.Article{
		testArticle("9", "z.htm", "Z", "P"),
	}))

	list, err := store.ListArticles(ctx, ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Z", list[0].Title)

	latest, err := store.LatestBuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b2", latest.ID)
	assert.Equal(t, 1, latest.Articles)
	assert.Empty(t, latest.Skipped)

	skipped, err := store.ListSkipped(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "/news/x.htm", skipped[0].Path)
	assert.Equal(t, "extract", skipped[0].Kind)
}
