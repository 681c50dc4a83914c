// Package vector is the adapter for the external vector-similarity
// store, a Redis 8+ instance queried through FT.SEARCH. It owns key and
// index naming, payload field mapping, and binary vector encoding; the
// retrieval and ingest usecases only see domain types.
package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/redis/rueidis"
)

const (
	chunkKeyPrefix = "epirag:chunk:"
	indexName      = "epirag:chunks:idx"

	fieldVector     = "vector"
	fieldDocumentID = "document_id"
	fieldSection    = "section"
	fieldCountry    = "country"
	fieldCharCount  = "char_count"
	fieldScore      = "__vector_score"
)

// Config holds connection parameters for the vector store.
type Config struct {
	Addrs      []string
	Username   string
	Password   string
	DB         int
	Dimensions int
}

// Store talks to Redis via rueidis.
type Store struct {
	client     rueidis.Client
	dimensions int
}

// NewStore creates a vector store client.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, dimensions: cfg.Dimensions}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for vector store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

func chunkKey(id string) string {
	return chunkKeyPrefix + id
}

// vectorToBytes serializes []float32 to little-endian binary, the layout
// FT.SEARCH expects for FLOAT32 vector fields.
func vectorToBytes(v []float32) string {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return string(b)
}
