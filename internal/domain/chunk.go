package domain

// Section is the structural section of a paper a chunk was extracted from.
type Section string

// Known section labels. Chunks from upstream extraction may also carry an
// empty or unrecognized section; those receive no ranking boost.
const (
	SectionResults    Section = "results"
	SectionMethods    Section = "methods"
	SectionDiscussion Section = "discussion"
	SectionAbstract   Section = "abstract"
	SectionTables     Section = "tables"
	SectionFullText   Section = "full_text"
)

// Chunk is a single passage of extracted document text. Chunks are
// immutable once written by the ingestion pipeline; retrieval only reads
// them.
type Chunk struct {
	ChunkID    string
	DocumentID string
	Section    Section
	Text       string
	CharCount  int
}
