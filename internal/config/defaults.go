package config

import (
	"github.com/hyperjump/newsvec/internal/corpus"
	"github.com/hyperjump/newsvec/internal/extract"
)

// DefaultEmbeddingResource is the GloVe table shipped with the corpus resources.
const DefaultEmbeddingResource = "glove.6B.50d_Reduced.csv"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".newsvec/db/newsvec.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = ".newsvec/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = ".newsvec/indices/vectors.bin"
	}
	if cfg.Embedding.Resource == "" {
		cfg.Embedding.Resource = DefaultEmbeddingResource
	}
	if cfg.Embedding.ResourceDirs == nil {
		cfg.Embedding.ResourceDirs = []string{"./resources"}
	}
	if cfg.Embedding.Delimiter == "" {
		cfg.Embedding.Delimiter = ","
	}
	if cfg.Embedding.MalformedRows == "" {
		cfg.Embedding.MalformedRows = "skip"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.News.Directory == "" {
		cfg.News.Directory = "./resources/News"
	}
	if cfg.News.Extensions == nil {
		cfg.News.Extensions = append([]string(nil), corpus.DefaultExtensions...)
	}
	if cfg.News.Workers == 0 {
		cfg.News.Workers = 4
	}
	if cfg.News.DebounceMS == 0 {
		cfg.News.DebounceMS = 500
	}
	applyTemplateDefaults(&cfg.Template)
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if !cfg.Search.DefaultKeywordEnabled && !cfg.Search.DefaultSemanticEnabled {
		cfg.Search.DefaultKeywordEnabled = true
		cfg.Search.DefaultSemanticEnabled = true
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 100
	}
	if cfg.Search.KeywordTitleBoost == 0 {
		cfg.Search.KeywordTitleBoost = 3.0
	}
	if cfg.Search.KeywordWeight == 0 && cfg.Search.SemanticWeight == 0 {
		cfg.Search.KeywordWeight = 0.5
		cfg.Search.SemanticWeight = 0.5
	}
}

// applyTemplateDefaults fills each empty marker list from the default template.
func applyTemplateDefaults(t *extract.TemplateConfig) {
	def := extract.DefaultTemplateConfig()
	if len(t.Title) == 0 {
		t.Title = def.Title
	}
	if len(t.Content) == 0 {
		t.Content = def.Content
	}
	if len(t.DataType) == 0 {
		t.DataType = def.DataType
	}
	if len(t.Label) == 0 {
		t.Label = def.Label
	}
	if t.TitleSuffixSeparator == "" {
		t.TitleSuffixSeparator = def.TitleSuffixSeparator
	}
}
