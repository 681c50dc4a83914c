package retrieval

import (
	"context"

	"github.com/epirag/epirag/internal/domain"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorSearcher runs a similarity search against the external vector
// store. An empty country means no filter. Store failures propagate as
// errors; an empty hit list is a normal outcome.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, country string, limit int) ([]domain.VectorHit, error)
}

// Lexical scores candidate ids against the raw query terms. Ids unknown
// to the lexical index score 0.
type Lexical interface {
	BatchScore(query string, ids []string) map[string]float64
}

// EventSink receives observability records. DocumentID may be empty.
type EventSink interface {
	Record(ctx context.Context, documentID string, level domain.EventLevel, message string) error
}
