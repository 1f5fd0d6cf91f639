// Package models defines core data structures for articles, queries, and search results.
package models

import "time"

// ArticleRecord is the structured extraction of one news document.
type ArticleRecord struct {
	Title    string `json:"title" db:"title"`
	Content  string `json:"content" db:"content"`
	DataType string `json:"data_type" db:"data_type"`
	Label    string `json:"label" db:"label"`
}

// Article is an ArticleRecord together with where it came from.
// Articles are listed by Name (the file name), then Path.
type Article struct {
	ID      string `json:"id" db:"id"`
	Path    string `json:"path" db:"path"`
	Name    string `json:"name" db:"name"`
	BuildID string `json:"build_id,omitempty" db:"build_id"`
	ArticleRecord
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SkippedDocument is a document left out of a corpus build.
type SkippedDocument struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Build summarizes one corpus build.
type Build struct {
	ID         string            `json:"id"`
	Root       string            `json:"root,omitempty"`
	Documents  int               `json:"documents"`
	Articles   int               `json:"articles"`
	Skipped    []SkippedDocument `json:"skipped,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}
