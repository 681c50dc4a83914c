package ingest

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/epirag/epirag/internal/domain"
	"github.com/epirag/epirag/internal/index"
)

// --- Mocks ---

type mockCorpus struct {
	chunks    []domain.Chunk
	countries map[string]string
}

func (m *mockCorpus) Chunks(_ context.Context) ([]domain.Chunk, error) {
	return m.chunks, nil
}

func (m *mockCorpus) DocumentInfo(_ context.Context, documentID string) (string, string, error) {
	country, ok := m.countries[documentID]
	if !ok {
		return "", "", domain.ErrNotFound
	}
	return country, "malaria", nil
}

type mockEmbedder struct {
	failFor map[string]bool
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.failFor[text] {
		return domain.EmbeddingResult{}, errors.New("embed failed")
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 3}, nil
}

type mockVectors struct {
	existing map[string]bool
	upserted []domain.EmbeddedChunk
	batches  int
}

func (m *mockVectors) EnsureIndex(_ context.Context) error { return nil }

func (m *mockVectors) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = m.existing[id]
	}
	return out, nil
}

func (m *mockVectors) Upsert(_ context.Context, chunks []domain.EmbeddedChunk) error {
	m.upserted = append(m.upserted, chunks...)
	m.batches++
	return nil
}

type mockSink struct {
	messages []string
}

func (m *mockSink) Record(_ context.Context, _ string, _ domain.EventLevel, message string) error {
	m.messages = append(m.messages, message)
	return nil
}

func testChunks() []domain.Chunk {
	return []domain.Chunk{
		{ChunkID: "c1", DocumentID: "d1", Section: domain.SectionResults, Text: "malaria treatment ghana", CharCount: 23},
		{ChunkID: "c2", DocumentID: "d1", Section: domain.SectionMethods, Text: "study design", CharCount: 12},
		{ChunkID: "c3", DocumentID: "d2", Section: domain.SectionAbstract, Text: "prevention summary", CharCount: 18},
	}
}

// --- Tests ---

func TestReindex_EmbedsMissingChunks(t *testing.T) {
	corpus := &mockCorpus{chunks: testChunks(), countries: map[string]string{"d1": "Ghana", "d2": "Nigeria"}}
	vectors := &mockVectors{existing: map[string]bool{"c2": true}}
	engine := index.NewEngine()
	sink := &mockSink{}

	svc := New(corpus, &mockEmbedder{}, vectors, engine, sink, zap.NewNop(), 2, 64)

	res, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}

	if res.ChunksTotal != 3 || res.Embedded != 2 || res.Skipped != 1 || res.Failed != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.LexicalDocs != 3 {
		t.Errorf("lexical index should cover the full corpus, got %d docs", res.LexicalDocs)
	}
	if len(vectors.upserted) != 2 {
		t.Fatalf("expected 2 upserts, got %d", len(vectors.upserted))
	}

	byID := make(map[string]domain.EmbeddedChunk)
	for _, ec := range vectors.upserted {
		byID[ec.ChunkID] = ec
	}
	if byID["c1"].Payload.Country != "Ghana" {
		t.Errorf("payload not enriched with country: %+v", byID["c1"].Payload)
	}
	if byID["c3"].Payload.Country != "Nigeria" {
		t.Errorf("payload not enriched with country: %+v", byID["c3"].Payload)
	}
	if byID["c1"].Payload.Section != domain.SectionResults || byID["c1"].Payload.CharCount != 23 {
		t.Errorf("payload fields not carried: %+v", byID["c1"].Payload)
	}

	// Rebuilt lexical snapshot is live.
	if engine.Snapshot().Score("c1", "malaria") <= 0 {
		t.Error("rebuilt snapshot should score corpus chunks")
	}

	if len(sink.messages) != 1 {
		t.Fatalf("expected one summary event, got %d", len(sink.messages))
	}
}

func TestReindex_CountsEmbeddingFailures(t *testing.T) {
	corpus := &mockCorpus{chunks: testChunks(), countries: map[string]string{"d1": "Ghana", "d2": "Nigeria"}}
	vectors := &mockVectors{}
	embed := &mockEmbedder{failFor: map[string]bool{"study design": true}}

	svc := New(corpus, embed, vectors, index.NewEngine(), &mockSink{}, zap.NewNop(), 2, 64)

	res, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if res.Failed != 1 || res.Embedded != 2 {
		t.Errorf("expected 2 embedded, 1 failed, got %+v", res)
	}
}

func TestReindex_BatchesUpserts(t *testing.T) {
	corpus := &mockCorpus{chunks: testChunks(), countries: map[string]string{"d1": "Ghana", "d2": "Nigeria"}}
	vectors := &mockVectors{}

	svc := New(corpus, &mockEmbedder{}, vectors, index.NewEngine(), &mockSink{}, zap.NewNop(), 2, 2)

	res, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if res.Embedded != 3 {
		t.Fatalf("expected 3 embedded, got %d", res.Embedded)
	}
	if vectors.batches != 2 {
		t.Errorf("expected 2 upsert batches with batch size 2, got %d", vectors.batches)
	}
}

func TestReindex_MissingAttributionDefaultsToEmptyCountry(t *testing.T) {
	corpus := &mockCorpus{chunks: testChunks()[:1], countries: map[string]string{}}
	vectors := &mockVectors{}

	svc := New(corpus, &mockEmbedder{}, vectors, index.NewEngine(), &mockSink{}, zap.NewNop(), 1, 64)

	if _, err := svc.Reindex(context.Background()); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if len(vectors.upserted) != 1 || vectors.upserted[0].Payload.Country != "" {
		t.Errorf("missing attribution should fall back to empty country: %+v", vectors.upserted)
	}
}
