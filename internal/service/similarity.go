package service

import (
	"math"

	"github.com/arclight-ai/quarry/internal/domain"
)

// cosineSimilarity computes the cosine similarity of two equal-length
// vectors, returning a score in [-1, 1]. A zero-norm input yields 0 rather
// than an error.
func cosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, domain.ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}
