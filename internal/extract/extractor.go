// Package extract turns the raw markup of one news document into an article record.
package extract

import (
	"errors"
	"fmt"
	"os"

	"github.com/hyperjump/newsvec/internal/models"
)

// Field names an article field located by an ArticleExtractor.
type Field string

const (
	FieldTitle    Field = "title"
	FieldContent  Field = "content"
	FieldDataType Field = "data_type"
	FieldLabel    Field = "label"
)

// ErrFieldNotFound is matched by every FieldNotFoundError.
var ErrFieldNotFound = errors.New("field marker not found")

// FieldNotFoundError reports that no marker for Field exists in the document.
// A marker that is present but empty is not an error; it yields "".
type FieldNotFoundError struct {
	Field Field
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFieldNotFound, e.Field)
}

func (e *FieldNotFoundError) Is(target error) bool {
	return target == ErrFieldNotFound
}

// ArticleExtractor locates the four article fields in one document's text.
// Implementations must be pure: the same text always yields the same result,
// and the four methods may be called in any order.
type ArticleExtractor interface {
	Title(text string) (string, error)
	Content(text string) (string, error)
	DataType(text string) (string, error)
	Label(text string) (string, error)
}

// Extract runs all four field extractors over text and builds one record.
// The first missing field is returned as a *FieldNotFoundError.
func Extract(ex ArticleExtractor, text string) (*models.ArticleRecord, error) {
	title, err := ex.Title(text)
	if err != nil {
		return nil, err
	}
	content, err := ex.Content(text)
	if err != nil {
		return nil, err
	}
	dataType, err := ex.DataType(text)
	if err != nil {
		return nil, err
	}
	label, err := ex.Label(text)
	if err != nil {
		return nil, err
	}
	return &models.ArticleRecord{
		Title:    title,
		Content:  content,
		DataType: dataType,
		Label:    label,
	}, nil
}

// ReadDocument reads the file at path as text: every line is terminated by
// "\n" (CRLF folded to LF) and invalid UTF-8 is replaced.
func ReadDocument(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return normalizeText(content), nil
}
