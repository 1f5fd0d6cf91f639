// Package cli provides output formatting for the newsvec command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/newsvec/internal/embedding"
	"github.com/hyperjump/newsvec/internal/models"
	"github.com/hyperjump/newsvec/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputXLSX is an Excel workbook; only article listings support it.
	OutputXLSX OutputFormat = "xlsx"
)

// ParseFormat converts a flag value to an OutputFormat. Empty means OutputText.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	case OutputXLSX:
		return OutputXLSX, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json, xlsx)", s)
	}
}

const rule = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for _, result := range response.Results {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Semantic: %.4f)\n",
			result.Rank, result.Score, result.KeywordScore, result.SemanticScore)
		writeArticleHeader(w, result.Article)
		text := result.Snippet
		if text == "" {
			text = TruncateWords(result.Article.Content, 40)
		}
		fmt.Fprintf(w, "\n%s\n\n", text)
	}
	return nil
}

func writeArticleHeader(w io.Writer, a *models.Article) {
	fmt.Fprintf(w, "File: %s\n", a.Name)
	if a.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", a.Title)
	}
	fmt.Fprintf(w, "Label: %s | Data type: %s\n", a.Label, a.DataType)
}

// WriteLoadReport writes the summary of an embedding table load.
func WriteLoadReport(w io.Writer, report *embedding.LoadReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Resource:   %s\n", report.Resource)
	fmt.Fprintf(w, "Rows:       %d\n", report.Rows)
	fmt.Fprintf(w, "Loaded:     %d\n", report.Loaded)
	fmt.Fprintf(w, "Dimensions: %d\n", report.Dimensions)
	fmt.Fprintf(w, "Duration:   %s\n", report.Duration)
	if len(report.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped rows (%d):\n", len(report.Skipped))
		for _, row := range report.Skipped {
			fmt.Fprintf(w, "  %s\n", utils.Truncate(row.Reason, 160))
		}
	}
	return nil
}

// WriteBuild writes a corpus build summary including its skipped documents.
func WriteBuild(w io.Writer, build *models.Build, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, build)
	}
	fmt.Fprintf(w, "Build:     %s\n", build.ID)
	if build.Root != "" {
		fmt.Fprintf(w, "Directory: %s\n", build.Root)
	}
	fmt.Fprintf(w, "Documents: %d\n", build.Documents)
	fmt.Fprintf(w, "Articles:  %d\n", build.Articles)
	fmt.Fprintf(w, "Skipped:   %d\n", len(build.Skipped))
	for _, s := range build.Skipped {
		fmt.Fprintf(w, "  [%s] %s: %s\n", s.Kind, s.Path, utils.Truncate(s.Reason, 160))
	}
	fmt.Fprintf(w, "Took:      %s\n", build.FinishedAt.Sub(build.StartedAt))
	return nil
}

// WriteArticles writes an article listing. Use ExportArticles for OutputXLSX.
func WriteArticles(w io.Writer, articles []*models.Article, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if articles == nil {
			articles = []*models.Article{}
		}
		return writeJSON(w, articles)
	case OutputXLSX:
		return ExportArticles(w, articles, nil)
	}
	for _, a := range articles {
		fmt.Fprintln(w, rule)
		writeArticleHeader(w, a)
		fmt.Fprintf(w, "ID: %s\n", a.ID)
		fmt.Fprintf(w, "\n%s\n\n", TruncateWords(a.Content, 40))
	}
	fmt.Fprintf(w, "%d articles\n", len(articles))
	return nil
}

// WriteWords writes one word per line, or a JSON array.
func WriteWords(w io.Writer, words []string, format OutputFormat) error {
	if format == OutputJSON {
		if words == nil {
			words = []string{}
		}
		return writeJSON(w, words)
	}
	for _, word := range words {
		fmt.Fprintln(w, word)
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
