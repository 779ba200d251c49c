// Package embedding provides text embedding backends and the lazily warmed
// Service that fronts them.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the embedding model could not be loaded or
// inference failed. Callers must propagate it, never substitute a zero vector.
var ErrUnavailable = errors.New("embedding unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
