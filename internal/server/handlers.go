package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/newsvec/internal/embedding"
	"github.com/hyperjump/newsvec/internal/models"
	"github.com/hyperjump/newsvec/internal/stopwords"
	"github.com/hyperjump/newsvec/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultPageSize    = 50
	maxPageSize        = 1000
	msgNoEmbeddingData = "no embedding table loaded"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// EmbeddingStatus describes the loaded embedding table and its vector index.
type EmbeddingStatus struct {
	Loaded      bool                  `json:"loaded"`
	Words       int                   `json:"words"`
	Dimensions  int                   `json:"dimensions"`
	Vectors     int                   `json:"vectors"`
	SkippedRows int                   `json:"skipped_rows"`
	LastReport  *embedding.LoadReport `json:"last_report,omitempty"`
}

// StatusConfig is the subset of configuration reported by /status.
type StatusConfig struct {
	NewsDirectory     string `json:"news_directory"`
	EmbeddingResource string `json:"embedding_resource"`
	MalformedRows     string `json:"malformed_rows"`
	DatabasePath      string `json:"database_path"`
	BleveIndexPath    string `json:"bleve_index_path"`
	VectorIndexPath   string `json:"vector_index_path"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Articles       int64           `json:"articles"`
	LatestBuild    *models.Build   `json:"latest_build"`
	Embedding      EmbeddingStatus `json:"embedding"`
	DiskUsageBytes *int64          `json:"disk_usage_bytes,omitempty"`
	Config         StatusConfig    `json:"config"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := s.storage.CountArticles(ctx)
	if err != nil {
		s.logger.Error("status: count articles failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	build, err := s.storage.LatestBuild(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("status: latest build failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := StatusResponse{
		Articles:    count,
		LatestBuild: build,
		Config: StatusConfig{
			NewsDirectory:     s.config.News.Directory,
			EmbeddingResource: s.config.Embedding.Resource,
			MalformedRows:     s.config.Embedding.MalformedRows,
			DatabasePath:      s.config.Storage.DatabasePath,
			BleveIndexPath:    s.config.Storage.BleveIndexPath,
			VectorIndexPath:   s.config.Storage.VectorIndexPath,
		},
	}
	if table := s.embeddings.Current(); table != nil {
		resp.Embedding.Loaded = true
		resp.Embedding.Words = table.Len()
		resp.Embedding.Dimensions = table.Dimensions()
	}
	if vi := s.indexer.VectorIndex(); vi != nil {
		resp.Embedding.Vectors = vi.Size()
	}
	s.reloadMu.Lock()
	if s.lastReport != nil {
		resp.Embedding.LastReport = s.lastReport
		resp.Embedding.SkippedRows = len(s.lastReport.Skipped)
	}
	s.reloadMu.Unlock()

	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
		s.config.Storage.VectorIndexPath,
	)
	if err == nil {
		resp.DiskUsageBytes = &diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStopwords(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     stopwords.Len(),
		"stopwords": stopwords.List(),
	})
}

func (s *Server) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	table := s.embeddings.Current()
	if table == nil {
		s.respondError(w, http.StatusServiceUnavailable, msgNoEmbeddingData)
		return
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":  table.Len(),
		"offset": offset,
		"limit":  limit,
		"words":  table.Page(offset, limit),
	})
}

func (s *Server) handleVector(w http.ResponseWriter, r *http.Request) {
	table := s.embeddings.Current()
	if table == nil {
		s.respondError(w, http.StatusServiceUnavailable, msgNoEmbeddingData)
		return
	}
	word := chi.URLParam(r, "word")
	pos, ok := table.Position(word)
	if !ok {
		s.respondError(w, http.StatusNotFound, "word not in vocabulary")
		return
	}
	vec, _ := table.Vector(word)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"word":     word,
		"position": pos,
		"vector":   vec,
	})
}

type reloadRequest struct {
	Resource string `json:"resource,omitempty"`
}

func (s *Server) handleReloadEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req reloadRequest
	if err := decodeOptional(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := req.Resource
	load := s.loader.LoadFromDirs
	if name == "" {
		name = s.config.Embedding.Resource
		load = s.loader.LoadResource
	}
	s.logger.Debug("reload embeddings request", zap.String("resource", name))

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	table, report, err := load(r.Context(), name)
	if err != nil {
		s.logger.Error("reload embeddings failed", zap.String("resource", name), zap.Error(err))
		switch {
		case errors.Is(err, embedding.ErrInvalidResourceName):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, embedding.ErrResourceNotFound):
			s.respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, embedding.ErrMalformedRow):
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if table.Len() == 0 {
		s.logger.Warn("reload produced an empty table, keeping current", zap.String("resource", name))
		s.respondError(w, http.StatusUnprocessableEntity, "embedding table has no valid rows")
		return
	}
	s.embeddings.Replace(table)
	s.lastReport = report
	if err := s.indexer.SyncEmbeddings(r.Context()); err != nil {
		s.logger.Error("vector sync after reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	articles, err := s.storage.ListArticles(r.Context(), storage.ArticleFilter{
		Offset:   offset,
		Limit:    limit,
		Label:    q.Get("label"),
		DataType: q.Get("data_type"),
	})
	if err != nil {
		s.logger.Error("list articles failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if articles == nil {
		articles = []*models.Article{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"offset":   offset,
		"limit":    limit,
		"articles": articles,
	})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	article, err := s.storage.GetArticle(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "article not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, article)
}

type buildRequest struct {
	Directory string `json:"directory,omitempty"`
}

func (s *Server) handleBuildCorpus(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := decodeOptional(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	root := req.Directory
	if root == "" {
		root = s.config.News.Directory
	}
	s.logger.Debug("build corpus request", zap.String("directory", root))

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	res, err := s.indexer.BuildAndIndex(r.Context(), root)
	if err != nil {
		s.logger.Error("corpus build failed", zap.String("directory", root), zap.Error(err))
		if errors.Is(err, os.ErrNotExist) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, res.Summary())
}

func (s *Server) handleLatestBuild(w http.ResponseWriter, r *http.Request) {
	build, err := s.storage.LatestBuild(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "no corpus build yet")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, build)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(query.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// pageParams reads offset and limit from the query string.
func pageParams(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	limit = defaultPageSize
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit, nil
}

// decodeOptional decodes a JSON body into v; an empty body leaves v unchanged.
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
