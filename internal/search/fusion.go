// Package search provides hybrid search (keyword + semantic) over the article corpus.
package search

import (
	"sort"

	"github.com/hyperjump/newsvec/internal/keyword"
	"github.com/hyperjump/newsvec/internal/vector"
)

// FusedResult holds an article ID and its fused keyword/semantic scores.
type FusedResult struct {
	ArticleID     string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores normalizes keyword scores to [0,1] by max.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	var maxScore float64
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// NormalizeSemanticScores clamps inner products to [0,1]; article vectors are
// normalized, so the scores are cosine similarities.
func NormalizeSemanticScores(results []*vector.VectorResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	for _, r := range results {
		switch {
		case r.Score < 0:
			normalized[r.ID] = 0
		case r.Score > 1:
			normalized[r.ID] = 1
		default:
			normalized[r.ID] = r.Score
		}
	}
	return normalized
}

// Fuse merges keyword and semantic score maps with weights and returns results
// sorted by fused score, ties broken by article ID.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		scoreMap[id] = &FusedResult{ArticleID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if result, exists := scoreMap[id]; exists {
			result.SemanticScore = score
		} else {
			scoreMap[id] = &FusedResult{ArticleID: id, SemanticScore: score}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = (keywordWeight * result.KeywordScore) + (semanticWeight * result.SemanticScore)
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ArticleID < results[j].ArticleID
	})
	return results
}
