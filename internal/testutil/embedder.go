package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
)

// FakeEmbedder produces deterministic vectors seeded from the text content.
// Identical texts always map to identical vectors, so distance-based
// assertions are stable across runs.
type FakeEmbedder struct {
	Dims int
}

func NewFakeEmbedder(dims int) *FakeEmbedder {
	return &FakeEmbedder{Dims: dims}
}

func (f *FakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector(text), nil
}

func (f *FakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = f.vector(t)
	}
	return vectors, nil
}

func (f *FakeEmbedder) vector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	v := make([]float32, f.Dims)
	var norm float64
	for i := range v {
		v[i] = float32(rng.NormFloat64())
		norm += float64(v[i]) * float64(v[i])
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
