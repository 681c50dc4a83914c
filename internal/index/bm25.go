// Package index implements the in-process BM25 lexical index over the
// chunk corpus. An index is built once from a full corpus snapshot and is
// immutable afterward; rebuilds produce a new Snapshot that an Engine
// swaps in atomically for concurrent readers.
package index

import (
	"math"
	"strings"
)

// BM25 constants. Not configurable.
const (
	k1 = 1.5
	b  = 0.75
)

// Document is one (id, text) pair fed to Build.
type Document struct {
	ID   string
	Text string
}

// Snapshot is an immutable built index. All derived statistics (idf,
// average length) come solely from the documents present at build time;
// there is no mutation API.
type Snapshot struct {
	termFreqs  map[string]map[string]int // doc id -> term -> frequency
	docLengths map[string]int            // doc id -> token count
	idf        map[string]float64
	avgDocLen  float64
}

// Build tokenizes every document and computes per-term idf and the
// corpus-wide average document length. Building over an empty corpus
// yields a snapshot that scores everything 0.
func Build(docs []Document) *Snapshot {
	s := &Snapshot{
		termFreqs:  make(map[string]map[string]int, len(docs)),
		docLengths: make(map[string]int, len(docs)),
		idf:        make(map[string]float64),
	}

	docFreq := make(map[string]int)
	totalLen := 0

	for _, doc := range docs {
		tokens := Tokenize(doc.Text)
		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		s.termFreqs[doc.ID] = freqs
		s.docLengths[doc.ID] = len(tokens)
		totalLen += len(tokens)

		for term := range freqs {
			docFreq[term]++
		}
	}

	if len(s.docLengths) > 0 {
		s.avgDocLen = float64(totalLen) / float64(len(s.docLengths))
	}

	n := float64(len(s.termFreqs))
	for term, df := range docFreq {
		// The +0.5 smoothing keeps idf defined for every df in [1, N].
		s.idf[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
	}

	return s
}

// Tokenize lower-cases and splits on whitespace. No stemming, no
// stop-word removal: queries and documents must tokenize identically.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Score returns the BM25 score of the document against the query. Ids
// unknown to the snapshot score exactly 0, never an error; this covers
// vector-store hits embedded after the last lexical rebuild.
func (s *Snapshot) Score(id, query string) float64 {
	freqs, ok := s.termFreqs[id]
	if !ok {
		return 0.0
	}

	docLen := float64(s.docLengths[id])
	score := 0.0

	for _, term := range Tokenize(query) {
		tf := float64(freqs[term])
		if tf == 0 {
			continue
		}
		idf, ok := s.idf[term]
		if !ok {
			continue
		}
		score += idf * tf * (k1 + 1) / (tf + k1*(1-b+b*(docLen/s.avgDocLen)))
	}

	return score
}

// BatchScore scores each id independently. No cross-id normalization
// happens here; that belongs to the fusion stage.
func (s *Snapshot) BatchScore(query string, ids []string) map[string]float64 {
	scores := make(map[string]float64, len(ids))
	for _, id := range ids {
		scores[id] = s.Score(id, query)
	}
	return scores
}

// Len returns the number of indexed documents.
func (s *Snapshot) Len() int {
	return len(s.termFreqs)
}
