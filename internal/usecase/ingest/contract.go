package ingest

import (
	"context"

	"github.com/epirag/epirag/internal/domain"
	"github.com/epirag/epirag/internal/index"
)

// CorpusStore yields the chunk corpus and per-document attribution.
type CorpusStore interface {
	Chunks(ctx context.Context) ([]domain.Chunk, error)
	DocumentInfo(ctx context.Context, documentID string) (country, disease string, err error)
}

// Embedder vectorizes chunk text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorWriter is the write side of the vector store.
type VectorWriter interface {
	EnsureIndex(ctx context.Context) error
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error
}

// LexicalRebuilder swaps in a fresh lexical snapshot built from a full
// corpus snapshot.
type LexicalRebuilder interface {
	Rebuild(docs []index.Document) *index.Snapshot
}

// EventSink receives observability records.
type EventSink interface {
	Record(ctx context.Context, documentID string, level domain.EventLevel, message string) error
}
