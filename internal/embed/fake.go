package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const fakeDimensions = 64

// Fake is a deterministic offline embedder. Vectors are normalized
// bag-of-words hashes, so texts sharing words land near each other. Suitable
// for tests and local runs without an embedding API.
type Fake struct{}

// NewFake returns the deterministic test embedder.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashEmbed(text)
	}
	return out, nil
}

func (f *Fake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return hashEmbed(text), nil
}

func hashEmbed(text string) []float32 {
	vec := make([]float32, fakeDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%fakeDimensions]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
