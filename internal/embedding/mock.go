package embedding

import (
	"context"
	"math"
)

// MockEmbedder is a deterministic embedder for tests. The same text always
// maps to the same unit-length vector, derived from a string hash.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensionality.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := hashString(text)
	vec := make([]float32, e.dimensions)
	for i := range vec {
		vec[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range vec {
			vec[i] *= float32(norm)
		}
	}
	return vec, nil
}

// Dimensions returns the embedding dimensionality.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *MockEmbedder) Close() error {
	return nil
}

func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
