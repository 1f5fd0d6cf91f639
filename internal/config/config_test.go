package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
embedding:
  malformed_rows: abort
news:
  workers: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, "abort", cfg.Embedding.MalformedRows)
	assert.Equal(t, 2, cfg.News.Workers)
	assert.Equal(t, DefaultEmbeddingResource, cfg.Embedding.Resource)
	assert.False(t, cfg.Debug)
	require.NoError(t, cfg.Validate())
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/newsvec.db"
embedding:
  resource_dirs: ["./resources", "/opt/glove"]
news:
  directory: "./corpus/News"
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "db", "newsvec.db"), cfg.Storage.DatabasePath)
	assert.Equal(t, []string{filepath.Join(dir, "resources"), "/opt/glove"}, cfg.Embedding.ResourceDirs)
	assert.Equal(t, filepath.Join(dir, "corpus", "News"), cfg.News.Directory)
}

func TestLoad_homeRelative(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	path := writeConfig(t, `
storage:
  bleve_index_path: "~/idx/bleve"
  vector_index_path: "idx/vectors.bin"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "idx", "bleve"), cfg.Storage.BleveIndexPath)
	assert.Equal(t, filepath.Join(home, "idx", "vectors.bin"), cfg.Storage.VectorIndexPath)
}

func TestLoad_errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not a map"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ",", cfg.Embedding.Delimiter)
	assert.Equal(t, "skip", cfg.Embedding.MalformedRows)
	assert.Equal(t, []string{".htm"}, cfg.News.Extensions)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.True(t, cfg.Search.DefaultKeywordEnabled)
	assert.True(t, cfg.Search.DefaultSemanticEnabled)
	assert.Equal(t, 0.5, cfg.Search.KeywordWeight)
	assert.Equal(t, 0.5, cfg.Search.SemanticWeight)
	assert.Equal(t, []string{"title", "h1"}, cfg.Template.Title)
	assert.Equal(t, " | ", cfg.Template.TitleSuffixSeparator)
	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_keepsCustomTemplateFields(t *testing.T) {
	cfg := &Config{}
	cfg.Template.Label = []string{"span.label"}
	ApplyDefaults(cfg)
	assert.Equal(t, []string{"span.label"}, cfg.Template.Label)
	assert.NotEmpty(t, cfg.Template.Content)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad policy", func(c *Config) { c.Embedding.MalformedRows = "ignore" }, "malformed_rows"},
		{"no workers", func(c *Config) { c.News.Workers = 0 }, "workers"},
		{"bad selector", func(c *Config) { c.Template.Title = []string{"p["} }, "template"},
		{"negative weight", func(c *Config) { c.Search.KeywordWeight = -1 }, "negative"},
		{"zero weights", func(c *Config) { c.Search.KeywordWeight, c.Search.SemanticWeight = 0, 0 }, "both be zero"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default(t.TempDir())
	t.Setenv("NEWSVEC_SERVER_PORT", "9999")
	t.Setenv("NEWSVEC_DEBUG", "true")
	t.Setenv("NEWSVEC_NEWS_DIRECTORY", "/data/News")
	t.Setenv("NEWSVEC_NEWS_EXTENSIONS", ".htm, .html")
	t.Setenv("NEWSVEC_EMBEDDING_MALFORMED_ROWS", "abort")

	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/data/News", cfg.News.Directory)
	assert.Equal(t, []string{".htm", ".html"}, cfg.News.Extensions)
	assert.Equal(t, "abort", cfg.Embedding.MalformedRows)
}

func TestApplyEnv_invalid(t *testing.T) {
	cfg := Default(t.TempDir())
	t.Setenv("NEWSVEC_SERVER_PORT", "eighty")
	err := ApplyEnv(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEWSVEC_SERVER_PORT")
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default(dir)
	cfg.Server.Port = 9100
	path := filepath.Join(dir, "saved.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, loaded.Server.Port)
	assert.Equal(t, cfg.Template, loaded.Template)
	assert.Equal(t, cfg.Storage, loaded.Storage)
}
