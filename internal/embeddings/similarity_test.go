// ABOUTME: Tests for cosine similarity and vector normalisation.
// ABOUTME: Covers identical, orthogonal, opposite, mismatched, and zero vectors.
package embeddings

import (
	"math"
	"testing"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	a := []float32{1, 2, 3}
	score := CosineSimilarity(a, a)
	if math.Abs(score-1.0) > 0.0001 {
		t.Errorf("expected ~1.0 for identical vectors, got %f", score)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	score := CosineSimilarity(a, b)
	if math.Abs(score) > 0.0001 {
		t.Errorf("expected ~0.0 for orthogonal vectors, got %f", score)
	}
}

func TestCosineSimilarityOpposite(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{-1, 0, 0}
	score := CosineSimilarity(a, b)
	if math.Abs(score+1.0) > 0.0001 {
		t.Errorf("expected ~-1.0 for opposite vectors, got %f", score)
	}
}

func TestCosineSimilarityDifferentLengths(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{1, 2, 3}
	score := CosineSimilarity(a, b)
	if score != 0 {
		t.Errorf("expected 0.0 for different length vectors, got %f", score)
	}
}

func TestCosineSimilarityEmpty(t *testing.T) {
	score := CosineSimilarity(nil, nil)
	if score != 0 {
		t.Errorf("expected 0.0 for nil vectors, got %f", score)
	}
}

func TestCosineSimilarityZeroMagnitude(t *testing.T) {
	zero := make([]float32, 3)
	score := CosineSimilarity(zero, []float32{1, 2, 3})
	if score != 0 || math.IsNaN(score) {
		t.Errorf("expected 0.0 for zero-magnitude vector, got %f", score)
	}
	if score := CosineSimilarity(zero, zero); score != 0 {
		t.Errorf("expected 0.0 for two zero vectors, got %f", score)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("expected [0.6 0.8], got %v", v)
	}

	zero := []float32{0, 0}
	normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("expected zero vector to stay zero, got %v", zero)
	}
}
