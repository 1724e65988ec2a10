package match

import "math"

// CosineSimilarity returns the cosine of the angle between two embedding
// vectors, clamped to [-1, 1]. Mismatched or empty vectors score 0, which
// can never cross a match threshold.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	s := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
