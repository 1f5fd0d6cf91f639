package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/newsvec/internal/models"
)

const (
	fieldTitle    = "title"
	fieldContent  = "content"
	fieldLabel    = "label"
	fieldDataType = "data_type"
)

// articleDoc is the flattened form of an article stored in Bleve.
type articleDoc struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Label    string `json:"label"`
	DataType string `json:"data_type"`
}

func toDoc(a *models.Article) articleDoc {
	return articleDoc{Title: a.Title, Content: a.Content, Label: a.Label, DataType: a.DataType}
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldTitle, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldContent, textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	keywordFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(fieldLabel, keywordFieldMapping)
	docMapping.AddFieldMappingsAt(fieldDataType, keywordFieldMapping)
	im.AddDocumentMapping("article", docMapping)
	im.DefaultType = "article"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes one article under its ID.
func (b *BleveIndex) Index(ctx context.Context, a *models.Article) error {
	return b.index.Index(a.ID, toDoc(a))
}

// IndexBatch indexes articles in a single Bleve batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, articles []*models.Article) error {
	batch := b.index.NewBatch()
	for _, a := range articles {
		if err := batch.Index(a.ID, toDoc(a)); err != nil {
			return fmt.Errorf("batch index %s: %w", a.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search runs a match query and returns up to limit results.
// When TitleBoost > 1, title and content are queried separately and the
// scores are added as title*boost + content.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	o := SearchOptions{TitleBoost: 1, Fuzziness: 1}
	if opts != nil {
		o = *opts
		if o.TitleBoost <= 0 {
			o.TitleBoost = 1
		}
		if o.Fuzziness <= 0 {
			o.Fuzziness = 1
		}
	}
	if limit <= 0 {
		limit = 10
	}

	if o.TitleBoost <= 1 {
		hits, err := b.run(ctx, b.textQuery(query, "", o), limit, o)
		if err != nil {
			return nil, fmt.Errorf("Bleve search failed: %w", err)
		}
		out := make([]*KeywordResult, 0, len(hits))
		for id, score := range hits {
			out = append(out, &KeywordResult{ID: id, Score: score})
		}
		return sortResults(out, limit), nil
	}

	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	titleHits, err := b.run(ctx, b.textQuery(query, fieldTitle, o), reqSize, o)
	if err != nil {
		return nil, fmt.Errorf("Bleve title search failed: %w", err)
	}
	contentHits, err := b.run(ctx, b.textQuery(query, fieldContent, o), reqSize, o)
	if err != nil {
		return nil, fmt.Errorf("Bleve content search failed: %w", err)
	}
	scores := make(map[string]float64, len(titleHits)+len(contentHits))
	for id, s := range titleHits {
		scores[id] += s * o.TitleBoost
	}
	for id, s := range contentHits {
		scores[id] += s
	}
	out := make([]*KeywordResult, 0, len(scores))
	for id, s := range scores {
		out = append(out, &KeywordResult{ID: id, Score: s})
	}
	return sortResults(out, limit), nil
}

func sortResults(out []*KeywordResult, limit int) []*KeywordResult {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// run executes q, restricted by the label and data type filters, and returns
// hit scores by ID.
func (b *BleveIndex) run(ctx context.Context, q blevequery.Query, size int, o SearchOptions) (map[string]float64, error) {
	var filters []blevequery.Query
	if o.Label != "" {
		tq := bleve.NewTermQuery(o.Label)
		tq.SetField(fieldLabel)
		filters = append(filters, tq)
	}
	if o.DataType != "" {
		tq := bleve.NewTermQuery(o.DataType)
		tq.SetField(fieldDataType)
		filters = append(filters, tq)
	}
	if len(filters) > 0 {
		q = bleve.NewConjunctionQuery(append([]blevequery.Query{q}, filters...)...)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = size
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	hits := make(map[string]float64, len(res.Hits))
	for _, hit := range res.Hits {
		hits[hit.ID] = hit.Score
	}
	return hits, nil
}

// textQuery builds a match query over field (all text fields when empty), or
// a disjunction of per-term fuzzy queries when fuzzy matching is on.
func (b *BleveIndex) textQuery(query, field string, o SearchOptions) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	if !o.FuzzyEnabled || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(o.Fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes an article from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of articles in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
