package domain

import "errors"

// Sentinel errors shared across layers. Repositories and transports wrap
// these with %w; the HTTP layer maps them to status codes.
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
)
