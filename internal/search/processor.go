package search

import (
	"github.com/hyperjump/newsvec/internal/config"
	"github.com/hyperjump/newsvec/internal/models"
)

// ProcessQuery validates the query and applies the configured defaults.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	if query.Limit <= 0 && cfg.DefaultLimit > 0 {
		query.Limit = cfg.DefaultLimit
	}
	if !query.KeywordEnabled && !query.SemanticEnabled {
		query.KeywordEnabled = cfg.DefaultKeywordEnabled
		query.SemanticEnabled = cfg.DefaultSemanticEnabled
	}
	if err := query.Validate(); err != nil {
		return err
	}
	if cfg.MaxLimit > 0 && query.Limit > cfg.MaxLimit {
		query.Limit = cfg.MaxLimit
	}
	return nil
}
