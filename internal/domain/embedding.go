package domain

// EmbeddingResult is the output of vectorizing a single text.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
