// Package main is the newsvec CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/newsvec/internal/cli"
	"github.com/hyperjump/newsvec/internal/config"
	"github.com/hyperjump/newsvec/internal/models"
	"github.com/hyperjump/newsvec/internal/server"
	"github.com/hyperjump/newsvec/internal/stopwords"
	"github.com/hyperjump/newsvec/internal/storage"
	"github.com/hyperjump/newsvec/internal/watcher"
	"github.com/hyperjump/newsvec/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/newsvec/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present; when neither exists the built-in
// defaults are used, relative to the current directory. NEWSVEC_* environment
// overrides are applied last. Returns the config and the path actually loaded
// ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	fallback := filepath.Join(cwd, "config.yaml")
	if _, statErr := os.Stat(fallback); statErr == nil {
		cfg, loadErr := config.Load(fallback)
		return cfg, fallback, loadErr
	}
	if _, statErr := os.Stat(path); statErr == nil {
		cfg, loadErr := config.Load(path)
		return cfg, path, loadErr
	}
	return config.Default(cwd), "", nil
}

// newLogger returns the server logger in server mode and a quieter console
// logger for one-shot commands.
func newLogger(debug, serverMode bool) (*zap.Logger, error) {
	if serverMode {
		return utils.NewLogger(debug)
	}
	if debug {
		return utils.NewCLILogger("debug")
	}
	return utils.NewCLILogger("warn")
}

func main() {
	// A missing .env is fine; variables already in the environment win.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "load":
		runLoad()
	case "build":
		runBuild()
	case "articles":
		runArticles()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "stopwords":
		runStopwords()
	case "version", "--version", "-v":
		fmt.Printf("newsvec version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config, creates the logger and opens every component.
func setup(configPath string, debug, serverMode bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := newLogger(debugMode, serverMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "re-index news documents as they change (overrides news.watch)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug, true)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report, err := components.loadEmbeddings(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to load embeddings", zap.Error(err))
	}
	if err := components.ensureCorpus(ctx, cfg); err != nil {
		logger.Warn("corpus not built", zap.Error(err))
	}

	if cfg.News.Watch || *watch {
		w := watcher.NewWatcher(cfg.News.Directory, cfg.News.Extensions, components.Indexer,
			watcher.WithLogger(logger),
			watcher.WithDebounce(time.Duration(cfg.News.DebounceMS)*time.Millisecond),
		)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Storage,
		components.Embeddings,
		components.Loader,
		cfg,
		logger,
		server.WithLoadReport(report),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runLoad() {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	resource := fs.String("resource", "", "embedding table name or path (default from config)")
	policy := fs.String("malformed-rows", "", "skip or abort (default from config)")
	words := fs.Int("words", 0, "also print the first N vocabulary words")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	if *resource != "" {
		cfg.Embedding.Resource = *resource
	}
	if *policy != "" {
		cfg.Embedding.MalformedRows = *policy
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	logger, err := newLogger(cfg.Debug, false)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	loader, err := newLoader(cfg, logger)
	if err != nil {
		fatalf("%v", err)
	}
	table, report, err := loader.LoadResource(context.Background(), cfg.Embedding.Resource)
	if err != nil {
		fatalf("Load failed: %v", err)
	}
	if err := cli.WriteLoadReport(os.Stdout, report, format); err != nil {
		fatalf("Output failed: %v", err)
	}
	if *words > 0 {
		if err := cli.WriteWords(os.Stdout, table.Page(0, *words), format); err != nil {
			fatalf("Output failed: %v", err)
		}
	}
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dir := fs.String("dir", "", "news directory (default from config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, logger, components := setup(*configPath, *debug, false)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if _, err := components.loadEmbeddings(ctx, cfg); err != nil {
		fatalf("%v", err)
	}
	root := cfg.News.Directory
	if *dir != "" {
		root = *dir
	}
	res, err := components.Indexer.BuildAndIndex(ctx, root)
	if err != nil {
		fatalf("Build failed: %v", err)
	}
	if err := cli.WriteBuild(os.Stdout, res.Summary(), format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runArticles() {
	fs := flag.NewFlagSet("articles", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	label := fs.String("label", "", "only articles with this label")
	dataType := fs.String("data-type", "", "only articles with this data type")
	offset := fs.Int("offset", 0, "skip this many articles")
	limit := fs.Int("limit", 0, "maximum articles (0 = all)")
	outputFormat := fs.String("output", "text", "output format: text, json, or xlsx")
	outPath := fs.String("out", "", "write to this file instead of stdout (required for xlsx on a terminal)")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	articles, err := components.Storage.ListArticles(ctx, storage.ArticleFilter{
		Offset:   *offset,
		Limit:    *limit,
		Label:    *label,
		DataType: *dataType,
	})
	if err != nil {
		fatalf("List failed: %v", err)
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fatalf("Create output: %v", err)
		}
		defer f.Close()
		out = f
	}
	if format == cli.OutputXLSX {
		var skipped []models.SkippedDocument
		if build, err := components.Storage.LatestBuild(ctx); err == nil {
			skipped = build.Skipped
		}
		err = cli.ExportArticles(out, articles, skipped)
	} else {
		err = cli.WriteArticles(out, articles, format)
	}
	if err != nil {
		fatalf("Output failed: %v", err)
	}
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: newsvec search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Results blend keyword (title and content) and semantic (mean word vector) scores.
  • Use --keyword=false for semantic-only search.
  • Use --semantic=false for keyword-only search.
  • --label and --data-type restrict results to one class or split.

Examples:
  newsvec search oil prices
  newsvec search --semantic=false "central bank"
  newsvec search --label Negative --data-type Testing storm
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open storage directly; the server must not be running)")
	limit := fs.Int("limit", 10, "number of results")
	offset := fs.Int("offset", 0, "skip this many results")
	minScore := fs.Float64("min-score", 0, "drop results below this fused score")
	kwEnabled := fs.Bool("keyword", true, "enable keyword search")
	semEnabled := fs.Bool("semantic", true, "enable semantic search")
	label := fs.String("label", "", "only articles with this label")
	dataType := fs.String("data-type", "", "only articles with this data type")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	query := &models.SearchQuery{
		Query:           queryStr,
		Limit:           *limit,
		Offset:          *offset,
		MinScore:        *minScore,
		KeywordEnabled:  *kwEnabled,
		SemanticEnabled: *semEnabled,
		Label:           *label,
		DataType:        *dataType,
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		// The server holds the Bleve and SQLite locks; go through its API.
		response, err = searchViaHTTP(*serverURL, query)
	} else {
		response, err = searchDirect(*configPath, query)
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func searchDirect(configPath string, query *models.SearchQuery) (*models.SearchResponse, error) {
	cfg, logger, components := setup(configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if _, err := components.loadEmbeddings(ctx, cfg); err != nil {
		return nil, err
	}
	return components.Engine.Search(ctx, query)
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	var status *server.StatusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fatalf("Status failed: %v", err)
	}
	if err := writeStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func statusDirect(configPath string) (*server.StatusResponse, error) {
	cfg, logger, components := setup(configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	count, err := components.Storage.CountArticles(ctx)
	if err != nil {
		return nil, err
	}
	status := &server.StatusResponse{
		Articles: count,
		Config: server.StatusConfig{
			NewsDirectory:     cfg.News.Directory,
			EmbeddingResource: cfg.Embedding.Resource,
			MalformedRows:     cfg.Embedding.MalformedRows,
			DatabasePath:      cfg.Storage.DatabasePath,
			BleveIndexPath:    cfg.Storage.BleveIndexPath,
			VectorIndexPath:   cfg.Storage.VectorIndexPath,
		},
	}
	if build, err := components.Storage.LatestBuild(ctx); err == nil {
		status.LatestBuild = build
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath, cfg.Storage.VectorIndexPath); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func statusViaHTTP(serverURL string) (*server.StatusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var s server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func writeStatus(w io.Writer, status *server.StatusResponse, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	fmt.Fprintf(w, "articles:           %d   # count of stored articles\n", status.Articles)
	if b := status.LatestBuild; b != nil {
		fmt.Fprintf(w, "latest_build:       %s   # %d documents, %d articles, %d skipped\n",
			b.ID, b.Documents, b.Articles, len(b.Skipped))
	} else {
		fmt.Fprintf(w, "latest_build:       none\n")
	}
	if status.Embedding.Loaded {
		fmt.Fprintf(w, "embedding_words:    %d\n", status.Embedding.Words)
		fmt.Fprintf(w, "embedding_dims:     %d\n", status.Embedding.Dimensions)
		fmt.Fprintf(w, "vectors:            %d   # articles in the semantic index\n", status.Embedding.Vectors)
		fmt.Fprintf(w, "skipped_rows:       %d\n", status.Embedding.SkippedRows)
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # storage + indices on disk\n", *status.DiskUsageBytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "news_directory:     %s\n", status.Config.NewsDirectory)
	fmt.Fprintf(w, "embedding_resource: %s\n", status.Config.EmbeddingResource)
	fmt.Fprintf(w, "malformed_rows:     %s\n", status.Config.MalformedRows)
	fmt.Fprintf(w, "database_path:      %s\n", status.Config.DatabasePath)
	fmt.Fprintf(w, "bleve_index_path:   %s\n", status.Config.BleveIndexPath)
	fmt.Fprintf(w, "vector_index_path:  %s\n", status.Config.VectorIndexPath)
	return nil
}

func runStopwords() {
	fs := flag.NewFlagSet("stopwords", flag.ExitOnError)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	if err := cli.WriteWords(os.Stdout, stopwords.List(), format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func printUsage() {
	fmt.Println(`newsvec - GloVe embeddings and news article search

Usage:
  newsvec server [flags]            Start the HTTP server
  newsvec load [flags]              Load the embedding table and report
  newsvec build [flags]             Build and index the news corpus
  newsvec articles [flags]          List stored articles
  newsvec search [flags] <query>    Search articles
  newsvec status [flags]            Show corpus/embedding/index status
  newsvec stopwords [flags]         Print the stopword list
  newsvec version                   Show version
  newsvec help                      Show this help

Common Flags:
  --config string    Config file path (default: ./config.yaml, then /usr/local/etc/newsvec/config.yaml)
  --output string    Output format: text or json (articles also supports xlsx)

Server Flags:
  --debug            Enable debug logging
  --watch            Re-index news documents as they change

Load Flags:
  --resource string        Table name or path (default from config)
  --malformed-rows string  skip or abort
  --words int              Also print the first N vocabulary words

Build Flags:
  --dir string       News directory (default from config)

Articles Flags:
  --label, --data-type     Filter
  --offset, --limit        Page
  --out string             Output file

Search Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to open storage directly.
  --limit, --offset  Page
  --min-score float  Minimum fused score
  --keyword          Enable keyword search (default: true)
  --semantic         Enable semantic search (default: true)
  --label, --data-type     Filter

Environment:
  NEWSVEC_* variables (also read from .env) override config values.

Examples:
  newsvec load --words 20
  newsvec build --dir ./resources/News
  newsvec articles --label Positive --output xlsx --out articles.xlsx
  newsvec search "oil prices"
  newsvec status --output json`)
}
