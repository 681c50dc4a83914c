// Package ingest runs the embedding/indexing pipeline: it embeds chunks
// missing from the vector store through a bounded worker pool, upserts
// them, and rebuilds the lexical index from the current corpus snapshot.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/epirag/epirag/internal/domain"
	"github.com/epirag/epirag/internal/index"
)

// Service coordinates one reindex pass. Safe for sequential use; the
// HTTP layer serializes reindex requests.
type Service struct {
	corpus    CorpusStore
	embed     Embedder
	vectors   VectorWriter
	lexical   LexicalRebuilder
	events    EventSink
	logger    *zap.Logger
	workers   int
	batchSize int
}

// Result summarizes one reindex pass.
type Result struct {
	ChunksTotal int
	Embedded    int
	Skipped     int
	Failed      int
	LexicalDocs int
}

// New creates an ingest service.
func New(
	corpus CorpusStore, embed Embedder, vectors VectorWriter, lexical LexicalRebuilder,
	events EventSink, logger *zap.Logger, workers, batchSize int,
) *Service {
	return &Service{
		corpus: corpus, embed: embed, vectors: vectors, lexical: lexical,
		events: events, logger: logger, workers: workers, batchSize: batchSize,
	}
}

// Reindex embeds all chunks not yet present in the vector store and
// atomically swaps in a fresh lexical snapshot over the full corpus.
// Individual chunk embedding failures are counted, not fatal.
func (s *Service) Reindex(ctx context.Context) (Result, error) {
	chunks, err := s.corpus.Chunks(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load corpus: %w", err)
	}

	res := Result{ChunksTotal: len(chunks)}

	// The lexical index always rebuilds from the full snapshot, even if
	// every vector already exists: the two stores drift apart otherwise.
	docs := make([]index.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = index.Document{ID: c.ChunkID, Text: c.Text}
	}
	snapshot := s.lexical.Rebuild(docs)
	res.LexicalDocs = snapshot.Len()

	if err := s.vectors.EnsureIndex(ctx); err != nil {
		return res, fmt.Errorf("ensure vector index: %w", err)
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ChunkID
	}
	existing, err := s.vectors.ExistingIDs(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("probe existing vectors: %w", err)
	}

	var missing []domain.Chunk
	for _, c := range chunks {
		if existing[c.ChunkID] {
			res.Skipped++
			continue
		}
		missing = append(missing, c)
	}

	if len(missing) > 0 {
		countries := s.countryByDocument(ctx, missing)

		embedded, failed := s.embedAll(ctx, missing, countries)
		res.Failed = failed

		for start := 0; start < len(embedded); start += s.batchSize {
			end := min(start+s.batchSize, len(embedded))
			if err := s.vectors.Upsert(ctx, embedded[start:end]); err != nil {
				return res, fmt.Errorf("upsert vectors: %w", err)
			}
			res.Embedded += end - start
		}
	}

	message := fmt.Sprintf(
		"Reindex complete: %d chunks, %d embedded, %d skipped, %d failed, lexical index %d docs",
		res.ChunksTotal, res.Embedded, res.Skipped, res.Failed, res.LexicalDocs,
	)
	if err := s.events.Record(ctx, "", domain.EventInfo, message); err != nil {
		s.logger.Warn("event sink write failed", zap.Error(err))
	}

	return res, nil
}

// countryByDocument prefetches country attribution once per document so
// pool workers never touch the corpus store concurrently.
func (s *Service) countryByDocument(ctx context.Context, chunks []domain.Chunk) map[string]string {
	countries := make(map[string]string)
	for _, c := range chunks {
		if _, seen := countries[c.DocumentID]; seen {
			continue
		}
		country, _, err := s.corpus.DocumentInfo(ctx, c.DocumentID)
		if err != nil {
			s.logger.Warn("document attribution missing",
				zap.String("document_id", c.DocumentID), zap.Error(err))
			country = ""
		}
		countries[c.DocumentID] = country
	}
	return countries
}

// embedAll runs the embedding calls through an ants pool of the
// configured size and returns successfully embedded chunks in corpus
// order.
func (s *Service) embedAll(
	ctx context.Context, chunks []domain.Chunk, countries map[string]string,
) ([]domain.EmbeddedChunk, int) {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		s.logger.Error("worker pool creation failed, embedding serially", zap.Error(err))
		return s.embedSerial(ctx, chunks, countries)
	}
	defer pool.Release()

	results := make([]*domain.EmbeddedChunk, len(chunks))
	var wg sync.WaitGroup
	var failed int
	var mu sync.Mutex

	for i, chunk := range chunks {
		i, chunk := i, chunk // per-iteration copies; module targets Go 1.21 loop semantics
		wg.Add(1)
		submitted := pool.Submit(func() {
			defer wg.Done()
			ec, err := s.embedOne(ctx, chunk, countries[chunk.DocumentID])
			if err != nil {
				s.logger.Warn("chunk embedding failed",
					zap.String("chunk_id", chunk.ChunkID), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			results[i] = ec
		})
		if submitted != nil {
			wg.Done()
			mu.Lock()
			failed++
			mu.Unlock()
		}
	}
	wg.Wait()

	embedded := make([]domain.EmbeddedChunk, 0, len(chunks))
	for _, r := range results {
		if r != nil {
			embedded = append(embedded, *r)
		}
	}
	return embedded, failed
}

func (s *Service) embedSerial(
	ctx context.Context, chunks []domain.Chunk, countries map[string]string,
) ([]domain.EmbeddedChunk, int) {
	embedded := make([]domain.EmbeddedChunk, 0, len(chunks))
	failed := 0
	for _, chunk := range chunks {
		ec, err := s.embedOne(ctx, chunk, countries[chunk.DocumentID])
		if err != nil {
			failed++
			continue
		}
		embedded = append(embedded, *ec)
	}
	return embedded, failed
}

func (s *Service) embedOne(ctx context.Context, chunk domain.Chunk, country string) (*domain.EmbeddedChunk, error) {
	result, err := s.embed.Embed(ctx, chunk.Text)
	if err != nil {
		return nil, err
	}
	return &domain.EmbeddedChunk{
		ChunkID:   chunk.ChunkID,
		Embedding: result.Embedding,
		Payload: domain.Payload{
			DocumentID: chunk.DocumentID,
			Section:    chunk.Section,
			Country:    country,
			CharCount:  chunk.CharCount,
		},
	}, nil
}
