package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/newsvec/internal/embedding"
	"github.com/hyperjump/newsvec/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testArticle(name, title, content, dataType, label string) *models.Article {
	return &models.Article{
		ID:   "article:" + name,
		Path: "/news/" + name,
		Name: name,
		ArticleRecord: models.ArticleRecord{
			Title:    title,
			Content:  content,
			DataType: dataType,
			Label:    label,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"xlsx", OutputXLSX, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := &models.SearchResponse{
		Query:     "markets",
		QueryTime: 42,
		Total:     1,
		Results: []*models.SearchResult{{
			Rank:    1,
			Score:   0.9,
			Article: testArticle("a.htm", "Markets Rally", "stocks rose", "Training", "Positive"),
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, response, OutputJSON))

	var decoded models.SearchResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "markets", decoded.Query)
	require.Len(t, decoded.Results, 1)
	assert.Equal(t, "Markets Rally", decoded.Results[0].Article.Title)
}

func TestWriteSearchResults_Text(t *testing.T) {
	response := &models.SearchResponse{
		Total: 1,
		Results: []*models.SearchResult{{
			Rank:    1,
			Score:   0.5,
			Snippet: "...markets rose...",
			Article: testArticle("a.htm", "Markets Rally", "stocks rose", "Training", "Positive"),
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, response, OutputText))
	out := buf.String()
	assert.Contains(t, out, "Found 1 results")
	assert.Contains(t, out, "Title: Markets Rally")
	assert.Contains(t, out, "Label: Positive | Data type: Training")
	assert.Contains(t, out, "...markets rose...")
}

func TestWriteLoadReport(t *testing.T) {
	report := &embedding.LoadReport{
		Resource:   "glove.csv",
		Rows:       3,
		Loaded:     2,
		Dimensions: 2,
		Skipped:    []embedding.SkippedRow{{Line: 2, Reason: "line 2: no coordinates"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteLoadReport(&buf, report, OutputText))
	assert.Contains(t, buf.String(), "Loaded:     2")
	assert.Contains(t, buf.String(), "line 2: no coordinates")

	buf.Reset()
	require.NoError(t, WriteLoadReport(&buf, report, OutputJSON))
	var decoded embedding.LoadReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded.Loaded)
	assert.Len(t, decoded.Skipped, 1)
}

func TestWriteBuild(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	build := &models.Build{
		ID:         "b1",
		Root:       "/news",
		Documents:  3,
		Articles:   2,
		Skipped:    []models.SkippedDocument{{Path: "/news/x.htm", Kind: "extract", Reason: "title not found"}},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteBuild(&buf, build, OutputText))
	out := buf.String()
	assert.Contains(t, out, "Documents: 3")
	assert.Contains(t, out, "[extract] /news/x.htm: title not found")
	assert.Contains(t, out, "1.5s")
}

func TestWriteArticles(t *testing.T) {
	articles := []*models.Article{
		testArticle("a.htm", "One", "first body", "Training", "Positive"),
		testArticle("b.htm", "Two", "second body", "Testing", "Negative"),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteArticles(&buf, articles, OutputText))
	out := buf.String()
	assert.Less(t, strings.Index(out, "Title: One"), strings.Index(out, "Title: Two"))
	assert.Contains(t, out, "2 articles")

	buf.Reset()
	require.NoError(t, WriteArticles(&buf, nil, OutputJSON))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteWords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWords(&buf, []string{"a", "an"}, OutputText))
	assert.Equal(t, "a\nan\n", buf.String())
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "one two", TruncateWords("one two", 5))
	assert.Equal(t, "one two...", TruncateWords("one two three", 2))
}

func TestExportArticles(t *testing.T) {
	articles := []*models.Article{
		testArticle("a.htm", "One", "first body", "Training", "Positive"),
		testArticle("b.htm", "Two", "second body", "Testing", "Negative"),
	}
	skipped := []models.SkippedDocument{{Path: "/news/c.htm", Kind: "read", Reason: "permission denied"}}

	var buf bytes.Buffer
	require.NoError(t, ExportArticles(&buf, articles, skipped))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(articlesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Title", "Content", "DataType", "Label", "Path", "ID"}, rows[0])
	assert.Equal(t, []string{"a.htm", "One", "first body", "Training", "Positive", "/news/a.htm", "article:a.htm"}, rows[1])
	assert.Equal(t, "Two", rows[2][1])

	rows, err = f.GetRows(skippedSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"/news/c.htm", "read", "permission denied"}, rows[1])
}

func TestExportArticles_noSkippedSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportArticles(&buf, nil, nil))
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{articlesSheet}, f.GetSheetList())
}
