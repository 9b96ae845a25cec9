// ABOUTME: Offline feature-hashing embedder that needs no model download.
// ABOUTME: Hashes word tokens and character trigrams into a fixed-size signed vector.
package embeddings

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// LocalBackend embeds text by hashing lightly stemmed words and their character
// trigrams into dim buckets, then L2-normalising. It always loads and is fully
// deterministic. Scores reflect shared words and trigrams, not meaning.
type LocalBackend struct {
	dim int
}

// NewLocalBackend creates a hashing embedder with the given dimension (384 if <= 0).
func NewLocalBackend(dim int) *LocalBackend {
	if dim <= 0 {
		dim = 384
	}
	return &LocalBackend{dim: dim}
}

// Embed implements Embedder.
func (b *LocalBackend) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, b.dim)
	for _, word := range tokenize(text) {
		b.add(vec, "w:"+word)
		padded := "#" + word + "#"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			b.add(vec, "t:"+string(runes[i:i+3]))
		}
	}
	normalize(vec)
	return vec, nil
}

// Dimension implements Embedder.
func (b *LocalBackend) Dimension() int {
	return b.dim
}

func (b *LocalBackend) add(vec []float32, feature string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(b.dim))
	// The top bit picks the sign so unrelated collisions cancel on average.
	if sum>>63 == 1 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}

// tokenize lowercases text, splits on anything that is not a letter or digit,
// and strips a plural "s" from longer words.
func tokenize(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for i, f := range fields {
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			fields[i] = f[:len(f)-1]
		}
	}
	return fields
}
