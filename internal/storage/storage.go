// Package storage defines the persistence interface for the article corpus.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/newsvec/internal/models"
)

// ErrNotFound is returned when an article or build does not exist.
var ErrNotFound = errors.New("not found")

// ArticleFilter selects a page of articles. Empty Label or DataType match everything.
type ArticleFilter struct {
	Offset   int
	Limit    int
	Label    string
	DataType string
}

// Storage defines article and build persistence operations.
type Storage interface {
	// Corpus operations
	ReplaceCorpus(ctx context.Context, build *models.Build, articles []*models.Article) error
	LatestBuild(ctx context.Context) (*models.Build, error)
	ListSkipped(ctx context.Context, buildID string) ([]models.SkippedDocument, error)

	// Article operations
	UpsertArticle(ctx context.Context, article *models.Article) error
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	DeleteArticle(ctx context.Context, id string) error
	ListArticles(ctx context.Context, filter ArticleFilter) ([]*models.Article, error)

	// Stats
	CountArticles(ctx context.Context) (int64, error)

	Close() error
}
