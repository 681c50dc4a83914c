package vector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/epirag/epirag/internal/domain"
)

// Upsert writes chunk hashes in a single DoMulti round-trip. The FT
// index picks them up automatically through the key prefix.
func (s *Store) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(chunks))
	for i, c := range chunks {
		cmds[i] = s.b().Hset().Key(chunkKey(c.ChunkID)).
			FieldValue().
			FieldValue(fieldVector, vectorToBytes(c.Embedding)).
			FieldValue(fieldDocumentID, c.Payload.DocumentID).
			FieldValue(fieldSection, string(c.Payload.Section)).
			FieldValue(fieldCountry, c.Payload.Country).
			FieldValue(fieldCharCount, strconv.Itoa(c.Payload.CharCount)).
			Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", chunks[i].ChunkID, err)
		}
	}
	return nil
}

// ExistingIDs reports which of the given chunk ids already have a stored
// vector, via one DoMulti EXISTS batch.
func (s *Store) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}

	cmds := make([]rueidis.Completed, len(ids))
	for i, id := range ids {
		cmds[i] = s.b().Exists().Key(chunkKey(id)).Build()
	}

	existing := make(map[string]bool, len(ids))
	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		n, err := res.AsInt64()
		if err != nil {
			return nil, fmt.Errorf("exists %s: %w", ids[i], err)
		}
		existing[ids[i]] = n > 0
	}
	return existing, nil
}
