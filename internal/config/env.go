package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NEWSVEC_"

// ApplyEnv overrides settings from NEWSVEC_* environment variables (typically
// loaded from a .env file first). Only variables that are set are applied.
func ApplyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("SERVER_HOST", &cfg.Server.Host)
	str("DATABASE_PATH", &cfg.Storage.DatabasePath)
	str("BLEVE_INDEX_PATH", &cfg.Storage.BleveIndexPath)
	str("VECTOR_INDEX_PATH", &cfg.Storage.VectorIndexPath)
	str("EMBEDDING_RESOURCE", &cfg.Embedding.Resource)
	str("EMBEDDING_MALFORMED_ROWS", &cfg.Embedding.MalformedRows)
	str("NEWS_DIRECTORY", &cfg.News.Directory)

	if v, ok := os.LookupEnv(EnvPrefix + "EMBEDDING_RESOURCE_DIRS"); ok {
		cfg.Embedding.ResourceDirs = splitList(v)
	}
	if v, ok := os.LookupEnv(EnvPrefix + "NEWS_EXTENSIONS"); ok {
		cfg.News.Extensions = splitList(v)
	}
	if err := envInt("SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if err := envInt("NEWS_WORKERS", &cfg.News.Workers); err != nil {
		return err
	}
	if err := envBool("DEBUG", &cfg.Debug); err != nil {
		return err
	}
	return envBool("NEWS_WATCH", &cfg.News.Watch)
}

func envInt(name string, dst *int) error {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = n
	return nil
}

func envBool(name string, dst *bool) error {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
