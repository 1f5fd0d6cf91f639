// Package corpus builds the news article corpus from a set of HTML documents.
package corpus

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/newsvec/internal/extract"
	"github.com/hyperjump/newsvec/internal/fileid"
	"github.com/hyperjump/newsvec/internal/models"
	"go.uber.org/zap"
)

// Kind classifies why a document was skipped.
type Kind string

const (
	KindRead    Kind = "read"
	KindExtract Kind = "extract"
)

// SkippedDocument is a document left out of a build. It is also the error
// returned by Builder.Document.
type SkippedDocument struct {
	Path string
	Kind Kind
	Err  error
}

func (s *SkippedDocument) Error() string {
	return fmt.Sprintf("%s %s: %v", s.Kind, s.Path, s.Err)
}

func (s *SkippedDocument) Unwrap() error { return s.Err }

// Model converts s to its stored form.
func (s *SkippedDocument) Model() models.SkippedDocument {
	return models.SkippedDocument{Path: s.Path, Kind: string(s.Kind), Reason: s.Err.Error()}
}

// Result is one corpus build. Articles follow the order of the input paths.
type Result struct {
	BuildID    string
	Root       string
	Articles   []*models.Article
	Skipped    []SkippedDocument
	Documents  int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Records returns the extracted records in corpus order.
func (r *Result) Records() []models.ArticleRecord {
	out := make([]models.ArticleRecord, len(r.Articles))
	for i, a := range r.Articles {
		out[i] = a.ArticleRecord
	}
	return out
}

// Summary returns the build metadata stored alongside the articles.
func (r *Result) Summary() *models.Build {
	b := &models.Build{
		ID:         r.BuildID,
		Root:       r.Root,
		Documents:  r.Documents,
		Articles:   len(r.Articles),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for i := range r.Skipped {
		b.Skipped = append(b.Skipped, r.Skipped[i].Model())
	}
	return b
}

// Builder turns document paths into article records with an ArticleExtractor.
type Builder struct {
	extractor extract.ArticleExtractor
	workers   int
	logger    *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger for skipped documents and build summaries.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithWorkers sets how many documents are processed concurrently (default 1).
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// NewBuilder returns a builder using ex for every document.
func NewBuilder(ex extract.ArticleExtractor, opts ...Option) *Builder {
	b := &Builder{extractor: ex, workers: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Document reads and extracts a single document. Failures are returned as
// *SkippedDocument.
func (b *Builder) Document(path string) (*models.Article, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	text, err := extract.ReadDocument(absPath)
	if err != nil {
		return nil, &SkippedDocument{Path: path, Kind: KindRead, Err: err}
	}
	rec, err := extract.Extract(b.extractor, text)
	if err != nil {
		return nil, &SkippedDocument{Path: path, Kind: KindExtract, Err: err}
	}
	return &models.Article{
		ID:            fileid.ArticleID(absPath),
		Path:          absPath,
		Name:          filepath.Base(absPath),
		ArticleRecord: *rec,
	}, nil
}

type outcome struct {
	article *models.Article
	skipped *SkippedDocument
}

// Build processes paths in the given order and returns one article per
// document that could be read and extracted. A failing document is logged,
// recorded in Result.Skipped and does not stop the build. Only context
// cancellation aborts it.
func (b *Builder) Build(ctx context.Context, paths []string) (*Result, error) {
	res := &Result{
		BuildID:   uuid.New().String(),
		Documents: len(paths),
		StartedAt: time.Now().UTC(),
	}
	outcomes := make([]outcome, len(paths))

	workers := b.workers
	if workers > len(paths) {
		workers = len(paths)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = b.process(paths[i])
			}
		}()
	}
dispatch:
	for i := range paths {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, o := range outcomes {
		if o.skipped != nil {
			b.logger.Warn("skipping document",
				zap.String("path", o.skipped.Path),
				zap.String("kind", string(o.skipped.Kind)),
				zap.Error(o.skipped.Err),
			)
			res.Skipped = append(res.Skipped, *o.skipped)
			continue
		}
		o.article.BuildID = res.BuildID
		res.Articles = append(res.Articles, o.article)
	}
	res.FinishedAt = time.Now().UTC()
	b.logger.Info("corpus built",
		zap.String("build_id", res.BuildID),
		zap.Int("documents", res.Documents),
		zap.Int("articles", len(res.Articles)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

func (b *Builder) process(path string) outcome {
	article, err := b.Document(path)
	if err != nil {
		sd, ok := err.(*SkippedDocument)
		if !ok {
			sd = &SkippedDocument{Path: path, Kind: KindRead, Err: err}
		}
		return outcome{skipped: sd}
	}
	return outcome{article: article}
}

// BuildDirectory discovers the documents under root and builds them.
func (b *Builder) BuildDirectory(ctx context.Context, root string, exts []string) (*Result, error) {
	paths, err := Discover(root, exts)
	if err != nil {
		return nil, err
	}
	res, err := b.Build(ctx, paths)
	if err != nil {
		return nil, err
	}
	res.Root = root
	return res, nil
}
