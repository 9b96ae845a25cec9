// ABOUTME: Vector math used by similarity search.
// ABOUTME: Cosine similarity with zero-magnitude and length-mismatch guards.
package embeddings

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths, empty vectors and zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// normalize scales v to unit length in place. Zero vectors are left unchanged.
func normalize(v []float32) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	inv := 1 / math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
