// Package config provides configuration loading and structs for the newsvec server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/newsvec/internal/embedding"
	"github.com/hyperjump/newsvec/internal/extract"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool                   `yaml:"debug"`
	Server    ServerConfig           `yaml:"server"`
	Storage   StorageConfig          `yaml:"storage"`
	Embedding EmbeddingConfig        `yaml:"embedding"`
	News      NewsConfig             `yaml:"news"`
	Template  extract.TemplateConfig `yaml:"template"`
	Search    SearchConfig           `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// EmbeddingConfig holds the word-embedding table settings.
type EmbeddingConfig struct {
	// Resource is the table's file name, looked up in ResourceDirs, or a path.
	Resource     string   `yaml:"resource"`
	ResourceDirs []string `yaml:"resource_dirs"`
	Delimiter    string   `yaml:"delimiter"`
	// MalformedRows is "skip" or "abort".
	MalformedRows string `yaml:"malformed_rows"`
	CacheSize     int    `yaml:"cache_size"`
}

// NewsConfig holds the news corpus settings.
type NewsConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
	Workers    int      `yaml:"workers"`
	// Watch rebuilds changed documents while the server runs.
	Watch      bool `yaml:"watch"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// SearchConfig holds search settings.
type SearchConfig struct {
	DefaultLimit           int     `yaml:"default_limit"`
	MaxLimit               int     `yaml:"max_limit"`
	DefaultKeywordEnabled  bool    `yaml:"default_keyword_enabled"`
	DefaultSemanticEnabled bool    `yaml:"default_semantic_enabled"`
	TopKCandidates         int     `yaml:"top_k_candidates"`
	KeywordTitleBoost      float64 `yaml:"keyword_title_boost"`
	KeywordWeight          float64 `yaml:"keyword_weight"`
	SemanticWeight         float64 `yaml:"semantic_weight"`
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns the default configuration with paths expanded against dir.
func Default(dir string) *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.expandPaths(dir)
	return &cfg
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	c.Storage.BleveIndexPath = expandPath(c.Storage.BleveIndexPath, configDir)
	c.Storage.VectorIndexPath = expandPath(c.Storage.VectorIndexPath, configDir)
	c.News.Directory = expandPath(c.News.Directory, configDir)
	for i := range c.Embedding.ResourceDirs {
		c.Embedding.ResourceDirs[i] = expandPath(c.Embedding.ResourceDirs[i], configDir)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, err := embedding.ParsePolicy(c.Embedding.MalformedRows); err != nil {
		return fmt.Errorf("embedding.malformed_rows: %w", err)
	}
	if c.Embedding.Resource == "" {
		return fmt.Errorf("embedding.resource is required")
	}
	if c.News.Workers < 1 {
		return fmt.Errorf("news.workers must be at least 1")
	}
	if _, err := extract.NewHTMLTemplate(c.Template); err != nil {
		return fmt.Errorf("template: %w", err)
	}
	if c.Search.KeywordWeight < 0 || c.Search.SemanticWeight < 0 {
		return fmt.Errorf("search weights must not be negative")
	}
	if c.Search.KeywordWeight+c.Search.SemanticWeight == 0 {
		return fmt.Errorf("search.keyword_weight and search.semantic_weight cannot both be zero")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		path = rest
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
