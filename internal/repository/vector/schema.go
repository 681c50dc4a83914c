package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// HNSW construction parameters for the chunk index.
const (
	hnswM           = 32
	hnswEFConstruct = 400
)

// EnsureIndex creates the FT index over chunk hashes if it does not
// exist yet. The vector field uses HNSW with COSINE distance at the
// configured dimensionality, which must match the embedding model.
func (s *Store) EnsureIndex(ctx context.Context) error {
	exists, err := s.indexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	args := []string{
		indexName, "ON", "HASH",
		"PREFIX", "1", chunkKeyPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.dimensions),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(hnswM),
		"EF_CONSTRUCTION", strconv.Itoa(hnswEFConstruct),
		fieldDocumentID, "TAG",
		fieldSection, "TAG",
		fieldCountry, "TAG",
		fieldCharCount, "NUMERIC",
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// indexExists probes existence via FT.INFO; "unknown index name" means
// absent.
func (s *Store) indexExists(ctx context.Context) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(indexName).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, fmt.Errorf("index info: %w", err)
	}
	return true, nil
}

func isRedisErr(err error, substr string) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), substr)
}
