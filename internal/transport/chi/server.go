// Package chi exposes the service over HTTP: query retrieval, reindex,
// ingestion log listing, and health.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/epirag/epirag/internal/domain"
	"github.com/epirag/epirag/internal/metrics"
	"github.com/epirag/epirag/internal/usecase/ingest"
)

// Retriever runs one hybrid retrieval. It never fails; internal errors
// surface as an empty result.
type Retriever interface {
	Retrieve(ctx context.Context, q domain.Query) []domain.Candidate
}

// Reindexer runs the embedding/indexing pipeline.
type Reindexer interface {
	Reindex(ctx context.Context) (ingest.Result, error)
}

// ChunkReader hydrates chunk text for API responses.
type ChunkReader interface {
	ChunkTexts(ctx context.Context, ids []string) (map[string]string, error)
}

// EventReader lists recent observability records.
type EventReader interface {
	RecentEvents(ctx context.Context, limit int) ([]domain.Event, error)
}

// Pinger reports backing store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Limits are the request bounds applied by the handlers.
type Limits struct {
	DefaultTopK int
	MaxTopK     int
}

// Server holds the HTTP handlers.
type Server struct {
	retriever Retriever
	reindexer Reindexer
	chunks    ChunkReader
	events    EventReader
	health    []Pinger
	limits    Limits
	logger    *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	retriever Retriever, reindexer Reindexer, chunks ChunkReader, events EventReader,
	health []Pinger, limits Limits, logger *zap.Logger,
) *Server {
	return &Server{
		retriever: retriever, reindexer: reindexer, chunks: chunks, events: events,
		health: health, limits: limits, logger: logger,
	}
}

// Routes registers the API endpoints on a router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/query", s.handleQuery)
	r.Post("/reindex", s.handleReindex)
	r.Get("/logs", s.handleLogs)
	r.Get("/healthz", s.handleHealth)
}

// --- /query ---

type queryRequest struct {
	UserQuery string `json:"user_query"`
	Country   string `json:"country,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

type chunkMetadata struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	Section       string  `json:"section"`
	Text          string  `json:"text"`
	CharCount     int     `json:"char_count"`
	FinalScore    float64 `json:"final_score"`
	SemanticScore float64 `json:"semantic_score"`
	BM25Score     float64 `json:"bm25_score"`
	SectionBoost  float64 `json:"section_boost"`
	Country       string  `json:"country,omitempty"`
}

type queryResponse struct {
	Query           string            `json:"query"`
	RetrievedChunks []chunkMetadata   `json:"retrieved_chunks"`
	TopChunkIDs     []string          `json:"top_chunk_ids"`
	ChunksRetrieved int               `json:"chunks_retrieved"`
	FiltersApplied  map[string]string `json:"filters_applied"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if len(strings.TrimSpace(req.UserQuery)) < 3 {
		writeError(w, http.StatusBadRequest, "validation_failed", "Query must be at least 3 characters")
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.limits.DefaultTopK
	}
	if topK > s.limits.MaxTopK {
		topK = s.limits.MaxTopK
	}

	countryLabel := req.Country
	if countryLabel == "" {
		countryLabel = "unknown"
	}

	start := time.Now()
	candidates := s.retriever.Retrieve(r.Context(), domain.Query{
		Text:    req.UserQuery,
		Country: req.Country,
		TopK:    topK,
	})
	metrics.QueryDuration.WithLabelValues(countryLabel).Observe(time.Since(start).Seconds())
	metrics.QueriesTotal.WithLabelValues(countryLabel, "success").Inc()
	metrics.RetrievedChunks.Set(float64(len(candidates)))

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ChunkID
	}

	texts, err := s.chunks.ChunkTexts(r.Context(), ids)
	if err != nil {
		// Scores are still useful without hydrated text.
		s.logger.Warn("chunk text hydration failed", zap.Error(err))
		texts = map[string]string{}
	}

	resp := queryResponse{
		Query:           req.UserQuery,
		RetrievedChunks: make([]chunkMetadata, 0, len(candidates)),
		TopChunkIDs:     ids,
		ChunksRetrieved: len(candidates),
		FiltersApplied:  map[string]string{},
	}
	if req.Country != "" {
		resp.FiltersApplied["country"] = req.Country
	}
	for _, c := range candidates {
		resp.RetrievedChunks = append(resp.RetrievedChunks, chunkMetadata{
			ChunkID:       c.ChunkID,
			DocumentID:    c.Payload.DocumentID,
			Section:       string(c.Payload.Section),
			Text:          texts[c.ChunkID],
			CharCount:     c.Payload.CharCount,
			FinalScore:    c.FinalScore,
			SemanticScore: c.SemanticScore,
			BM25Score:     c.BM25Score,
			SectionBoost:  c.SectionBoost,
			Country:       c.Payload.Country,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- /reindex ---

type reindexRequest struct {
	Confirm bool `json:"confirm"`
}

type reindexResponse struct {
	Success     bool `json:"success"`
	ChunksTotal int  `json:"chunks_total"`
	Embedded    int  `json:"embedded"`
	Skipped     int  `json:"skipped"`
	Failed      int  `json:"failed"`
	LexicalDocs int  `json:"lexical_docs"`
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if !req.Confirm {
		writeError(w, http.StatusBadRequest, "validation_failed", "Reindex requires confirm=true")
		return
	}

	res, err := s.reindexer.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reindexResponse{
		Success:     true,
		ChunksTotal: res.ChunksTotal,
		Embedded:    res.Embedded,
		Skipped:     res.Skipped,
		Failed:      res.Failed,
		LexicalDocs: res.LexicalDocs,
	})
}

// --- /logs ---

type logEntry struct {
	LogID      int64  `json:"log_id"`
	DocumentID string `json:"document_id,omitempty"`
	Level      string `json:"level"`
	Message    string `json:"message"`
	CreatedAt  string `json:"created_at"`
}

type logsResponse struct {
	TotalLogs int        `json:"total_logs"`
	Logs      []logEntry `json:"logs"`
}

const defaultLogLimit = 50

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.events.RecentEvents(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := logsResponse{TotalLogs: len(events), Logs: make([]logEntry, 0, len(events))}
	for _, e := range events {
		resp.Logs = append(resp.Logs, logEntry{
			LogID:      e.LogID,
			DocumentID: e.DocumentID,
			Level:      string(e.Level),
			Message:    e.Message,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- /healthz ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.health {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// --- Helpers ---

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, "embedding_provider_error", err.Error())
	case errors.Is(err, domain.ErrVectorStoreUnavailable):
		writeError(w, http.StatusBadGateway, "vector_store_unavailable", err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
