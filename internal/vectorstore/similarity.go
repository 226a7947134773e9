package vectorstore

import (
	"math"
	"sort"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when either
// is zero-length or the dimensions differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// TopK sorts hits by non-increasing score, ties by chunk ID, and keeps at most k.
func TopK(hits []domain.ScoredChunk, k int) []domain.ScoredChunk {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
