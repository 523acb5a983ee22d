package graph

import (
	"cmp"
	"math"
	"slices"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

const (
	mergeThreshold     = 0.9
	candidateThreshold = 0.7
	maxCandidates      = 3
)

// cosineSimilarity returns 0 for vectors of different length or zero norm.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// findCandidates compares entity idx with every other entity of the same
// type and returns the most similar ones above the candidate threshold.
func findCandidates(entities []common.DraftEntity, vectors [][]float32, idx int) []common.AlignmentCandidate {
	var out []common.AlignmentCandidate
	for i, other := range entities {
		if i == idx || other.Type != entities[idx].Type {
			continue
		}
		sim := cosineSimilarity(vectors[idx], vectors[i])
		if sim >= candidateThreshold {
			out = append(out, common.AlignmentCandidate{ID: other.ID, Name: other.Name, Similarity: sim})
		}
	}
	slices.SortStableFunc(out, func(a, b common.AlignmentCandidate) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

// suggest classifies an entity from its candidates: merge into the best
// one when it is nearly identical or has the same name, otherwise offer
// the candidates for review.
func suggest(entity common.DraftEntity, candidates []common.AlignmentCandidate) common.AlignmentSuggestion {
	if len(candidates) == 0 {
		return common.NewSuggestion()
	}
	best := candidates[0]
	if best.Similarity >= mergeThreshold || best.Name == entity.Name {
		return common.MergeSuggestion(best)
	}
	return common.CandidateSuggestion(candidates)
}
