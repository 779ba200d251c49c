// Package vector provides the in-memory similarity index over chunk embeddings.
package vector

import "context"

// Index stores unit-length vectors by ID and answers top-k inner-product
// queries. With normalized vectors inner product equals cosine similarity.
type Index interface {
	Add(ctx context.Context, id string, vec []float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single similarity hit.
type Result struct {
	ID    string
	Score float64
}
