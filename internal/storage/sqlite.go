package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/newsvec/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		name TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		data_type TEXT NOT NULL,
		label TEXT NOT NULL,
		build_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_articles_order ON articles(name, path);
	CREATE INDEX IF NOT EXISTS idx_articles_label ON articles(label);

	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		root TEXT,
		documents INTEGER NOT NULL,
		articles INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS skipped_documents (
		build_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		path TEXT NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT NOT NULL,
		PRIMARY KEY (build_id, position),
		FOREIGN KEY (build_id) REFERENCES builds(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

const articleColumns = `id, path, name, title, content, data_type, label, build_id, created_at, updated_at`

const upsertArticle = `INSERT INTO articles (` + articleColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		path = excluded.path, name = excluded.name, title = excluded.title,
		content = excluded.content, data_type = excluded.data_type, label = excluded.label,
		build_id = excluded.build_id, updated_at = excluded.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var a models.Article
	var buildID sql.NullString
	if err := row.Scan(&a.ID, &a.Path, &a.Name, &a.Title, &a.Content, &a.DataType, &a.Label,
		&buildID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.BuildID = buildID.String
	return &a, nil
}

func stampArticle(a *models.Article, now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

// ReplaceCorpus swaps the stored corpus for articles and records build, in one
// transaction. Readers see either the previous corpus or the new one.
func (s *SQLiteStorage) ReplaceCorpus(ctx context.Context, build *models.Build, articles []*models.Article) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM articles`); err != nil {
		return fmt.Errorf("failed to clear articles: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertArticle)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, a := range articles {
		stampArticle(a, now)
		if _, err := stmt.ExecContext(ctx, a.ID, a.Path, a.Name, a.Title, a.Content, a.DataType, a.Label,
			a.BuildID, a.CreatedAt, a.UpdatedAt); err != nil {
			return fmt.Errorf("failed to store article %s: %w", a.Path, err)
		}
	}

	if build != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO builds (id, root, documents, articles, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			build.ID, build.Root, build.Documents, build.Articles, build.StartedAt, build.FinishedAt,
		); err != nil {
			return fmt.Errorf("failed to store build: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM skipped_documents WHERE build_id = ?`, build.ID); err != nil {
			return err
		}
		for i, sd := range build.Skipped {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO skipped_documents (build_id, position, path, kind, reason) VALUES (?, ?, ?, ?, ?)`,
				build.ID, i, sd.Path, sd.Kind, sd.Reason,
			); err != nil {
				return fmt.Errorf("failed to store skipped document: %w", err)
			}
		}
	}
	return tx.Commit()
}

// LatestBuild returns the most recently finished build with its skipped documents.
func (s *SQLiteStorage) LatestBuild(ctx context.Context) (*models.Build, error) {
	var b models.Build
	var root sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, root, documents, articles, started_at, finished_at
		 FROM builds ORDER BY finished_at DESC LIMIT 1`,
	).Scan(&b.ID, &root, &b.Documents, &b.Articles, &b.StartedAt, &b.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	b.Root = root.String
	if b.Skipped, err = s.ListSkipped(ctx, b.ID); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListSkipped returns the documents skipped by a build, in build order.
func (s *SQLiteStorage) ListSkipped(ctx context.Context, buildID string) ([]models.SkippedDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, kind, reason FROM skipped_documents WHERE build_id = ? ORDER BY position`, buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SkippedDocument
	for rows.Next() {
		var sd models.SkippedDocument
		if err := rows.Scan(&sd.Path, &sd.Kind, &sd.Reason); err != nil {
			return nil, err
		}
		out = append(out, sd)
	}
	return out, rows.Err()
}

// UpsertArticle inserts an article or updates the stored one with the same ID.
func (s *SQLiteStorage) UpsertArticle(ctx context.Context, a *models.Article) error {
	stampArticle(a, time.Now())
	_, err := s.db.ExecContext(ctx, upsertArticle,
		a.ID, a.Path, a.Name, a.Title, a.Content, a.DataType, a.Label, a.BuildID, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// GetArticle returns an article by ID.
func (s *SQLiteStorage) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	a, err := scanArticle(s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return a, err
}

// DeleteArticle removes an article by ID. Deleting a missing article is not an error.
func (s *SQLiteStorage) DeleteArticle(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	return err
}

// ListArticles returns a page of articles ordered by file name, then path.
func (s *SQLiteStorage) ListArticles(ctx context.Context, f ArticleFilter) ([]*models.Article, error) {
	var where []string
	var args []any
	if f.Label != "" {
		where = append(where, "label = ?")
		args = append(args, f.Label)
	}
	if f.DataType != "" {
		where = append(where, "data_type = ?")
		args = append(args, f.DataType)
	}
	query := `SELECT ` + articleColumns + ` FROM articles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` ORDER BY name, path LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// CountArticles returns the total number of stored articles.
func (s *SQLiteStorage) CountArticles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
