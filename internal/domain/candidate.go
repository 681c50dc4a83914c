package domain

// Payload is the chunk metadata stored alongside its vector. The vector
// store returns it as loose hash fields; absent fields keep their zero
// value so downstream filter and boost logic never does key probing.
type Payload struct {
	DocumentID string
	Section    Section
	Country    string
	CharCount  int
}

// Candidate is one chunk under consideration for a single retrieval.
// Component scores are kept separate so callers and logs can see how the
// final ordering was produced. Candidates live for one query only.
type Candidate struct {
	ChunkID       string
	SemanticScore float64
	BM25Score     float64
	SectionBoost  float64
	FinalScore    float64
	Payload       Payload
}

// VectorHit is a raw similarity hit from the vector store, before any
// lexical scoring or fusion.
type VectorHit struct {
	ChunkID    string
	Similarity float64
	Payload    Payload
}

// EmbeddedChunk is a chunk with its computed vector, ready for upsert
// into the vector store.
type EmbeddedChunk struct {
	ChunkID   string
	Embedding []float32
	Payload   Payload
}

// Query is the immutable context of one retrieval call.
type Query struct {
	Text    string
	Country string // empty means no country filter
	TopK    int
}
