package embedding

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/hyperjump/newsvec/internal/stopwords"
	"github.com/hyperjump/newsvec/pkg/utils"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ErrEmptyIndex is returned when embedding text against an index with no rows.
var ErrEmptyIndex = errors.New("embedding index is empty")

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Embed returns the L2-normalized mean of the vectors of the non-stopword
// tokens of text that are in the vocabulary. Text with no known tokens
// yields a zero vector of the index dimension.
func (idx *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	if idx.dimensions == 0 {
		return nil, ErrEmptyIndex
	}
	sum := make([]float64, idx.dimensions)
	n := 0
	for _, tok := range stopwords.Filter(Tokenize(text)) {
		i, ok := idx.positions[tok]
		if !ok {
			continue
		}
		for j, v := range idx.vectors[i] {
			sum[j] += v
		}
		n++
	}
	out := make([]float32, idx.dimensions)
	if n == 0 {
		return out, nil
	}
	for j := range sum {
		out[j] = float32(sum[j] / float64(n))
	}
	utils.NormalizeL2(out)
	return out, nil
}

// EmbedBatch calls Embed for each text.
func (idx *Index) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := idx.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// Close is a no-op; an Index holds no external resources.
func (idx *Index) Close() error {
	return nil
}

// CachedEmbedder wraps an Embedder with an LRU cache keyed by text.
type CachedEmbedder struct {
	Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder returns e with a cache of the given capacity in front of Embed.
func NewCachedEmbedder(e Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{Embedder: e, cache: NewEmbeddingCache(capacity)}
}

// Embed returns the cached embedding for text or computes and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, v)
	return v, nil
}
