// Package retrieval orchestrates one hybrid retrieval per query: embed
// the query, over-fetch similar chunks from the vector store, score the
// same candidates lexically, fuse both signals, boost by section, and
// return the top K.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/epirag/epirag/internal/domain"
)

// overfetchFactor is how many times TopK candidates are requested from
// the vector store to give fusion room to re-rank. There is no fallback
// widening when a country filter leaves fewer than TopK survivors.
const overfetchFactor = 2

// queryPrefixLen bounds how much of the query text appears in event
// records.
const queryPrefixLen = 100

// Service runs hybrid retrievals against a shared read-only lexical
// snapshot and the external embedding and vector-store collaborators.
type Service struct {
	embed   Embedder
	vectors VectorSearcher
	lexical Lexical
	events  EventSink
	logger  *zap.Logger
}

// New creates a retrieval service.
func New(embed Embedder, vectors VectorSearcher, lexical Lexical, events EventSink, logger *zap.Logger) *Service {
	return &Service{embed: embed, vectors: vectors, lexical: lexical, events: events, logger: logger}
}

// Retrieve is the outer boundary: it never fails. Internal errors are
// recorded as ERROR events and surface as an empty candidate list, so
// callers distinguish failure from genuine zero results only by the
// logged record level.
func (s *Service) Retrieve(ctx context.Context, q domain.Query) []domain.Candidate {
	candidates, err := s.retrieve(ctx, q)
	if err != nil {
		s.logger.Error("retrieval failed",
			zap.String("query", queryPrefix(q.Text)),
			zap.String("country", q.Country),
			zap.Error(err),
		)
		s.record(ctx, "", domain.EventError,
			fmt.Sprintf("Retrieval failed for query %q: %v", queryPrefix(q.Text), err))
		return []domain.Candidate{}
	}
	return candidates
}

// retrieve returns an error for internal failures so tests and logs can
// tell them apart from empty-result outcomes.
func (s *Service) retrieve(ctx context.Context, q domain.Query) ([]domain.Candidate, error) {
	embResult, err := s.embed.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.vectors.Search(ctx, embResult.Embedding, q.Country, overfetchFactor*q.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	if len(hits) == 0 {
		s.record(ctx, "", domain.EventWarning,
			fmt.Sprintf("Query: %q, Filters: %s, Results: 0", queryPrefix(q.Text), filterInfo(q)))
		return []domain.Candidate{}, nil
	}

	ids := make([]string, len(hits))
	semanticScores := make(map[string]float64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ChunkID
		semanticScores[hit.ChunkID] = hit.Similarity
	}

	lexicalScores := s.lexical.BatchScore(q.Text, ids)

	semanticNorm := normalizeScores(semanticScores)
	lexicalNorm := normalizeScores(lexicalScores)

	candidates := fuseCandidates(hits, semanticNorm, lexicalNorm)
	sortByFinalScore(candidates)
	applySectionBoosts(candidates)
	sortByFinalScore(candidates)

	if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}

	topDoc := ""
	if len(candidates) > 0 {
		topDoc = candidates[0].Payload.DocumentID
	}
	s.record(ctx, topDoc, domain.EventInfo, fmt.Sprintf(
		"Query: %q, Filters: %s, Retrieved: %d/%d chunks, Top scores: [%s]",
		queryPrefix(q.Text), filterInfo(q), len(candidates), q.TopK, topScores(candidates),
	))

	return candidates, nil
}

// record writes an observability event. Sink failures are logged and
// swallowed; they never fail a retrieval.
func (s *Service) record(ctx context.Context, documentID string, level domain.EventLevel, message string) {
	if err := s.events.Record(ctx, documentID, level, message); err != nil {
		s.logger.Warn("event sink write failed", zap.Error(err))
	}
}

func queryPrefix(query string) string {
	if len(query) > queryPrefixLen {
		return query[:queryPrefixLen] + "..."
	}
	return query
}

func filterInfo(q domain.Query) string {
	if q.Country != "" {
		return "country=" + q.Country
	}
	return "none"
}

// topScores formats the component scores of the top 3 candidates.
func topScores(candidates []domain.Candidate) string {
	n := len(candidates)
	if n > 3 {
		n = 3
	}
	parts := make([]string, 0, n)
	for _, c := range candidates[:n] {
		parts = append(parts, fmt.Sprintf("semantic=%.3f, bm25=%.3f, final=%.3f",
			c.SemanticScore, c.BM25Score, c.FinalScore))
	}
	return strings.Join(parts, ", ")
}
