package retrieval

import (
	"sort"

	"github.com/epirag/epirag/internal/domain"
)

// Fusion weights for the semantic and lexical signals. Fixed, not
// user-configurable.
const (
	alpha = 0.7
	beta  = 0.3
)

// sectionBoosts is the additive boost per section label. Sections absent
// from the table (including unknown labels) get no boost.
var sectionBoosts = map[domain.Section]float64{
	domain.SectionResults:    0.30,
	domain.SectionMethods:    0.20,
	domain.SectionDiscussion: 0.10,
	domain.SectionAbstract:   0.05,
	domain.SectionTables:     0.00,
	domain.SectionFullText:   0.00,
}

// normalizeScores divides every value by the map maximum. An empty map
// stays empty; a zero maximum maps every value to 0.0.
func normalizeScores(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return map[string]float64{}
	}

	maxScore := 0.0
	for _, v := range scores {
		if v > maxScore {
			maxScore = v
		}
	}

	normalized := make(map[string]float64, len(scores))
	if maxScore == 0 {
		for k := range scores {
			normalized[k] = 0.0
		}
		return normalized
	}
	for k, v := range scores {
		normalized[k] = v / maxScore
	}
	return normalized
}

// fuseCandidates combines normalized semantic and lexical scores into
// candidates, preserving the vector-store hit order as input order for
// later stable sorting.
func fuseCandidates(
	hits []domain.VectorHit, semanticNorm, lexicalNorm map[string]float64,
) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, len(hits))
	for _, hit := range hits {
		semantic := semanticNorm[hit.ChunkID]
		lexical := lexicalNorm[hit.ChunkID]
		candidates = append(candidates, domain.Candidate{
			ChunkID:       hit.ChunkID,
			SemanticScore: semantic,
			BM25Score:     lexical,
			FinalScore:    alpha*semantic + beta*lexical,
			Payload:       hit.Payload,
		})
	}
	return candidates
}

// applySectionBoosts adds the per-section boost to each final score.
// Applied once, after fusion; callers must re-sort afterward since the
// boost can reorder candidates.
func applySectionBoosts(candidates []domain.Candidate) {
	for i := range candidates {
		boost := sectionBoosts[candidates[i].Payload.Section]
		candidates[i].SectionBoost = boost
		candidates[i].FinalScore += boost
	}
}

// sortByFinalScore orders candidates descending by final score. The sort
// is stable so ties keep their input order.
func sortByFinalScore(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})
}
