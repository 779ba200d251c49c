// Package retriever turns a question into the top-K supporting chunks.
package retriever

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/opsmind-ai/opsmind/internal/models"
)

// DefaultTopK is the number of chunks retrieved when the caller does not ask
// for a specific K.
const DefaultTopK = 3

// Embedder is the slice of the embedding service the retriever needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the slice of the chunk store the retriever needs.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]*models.RetrievedChunk, error)
}

// Retriever embeds a question and searches the chunk store.
type Retriever struct {
	embedder Embedder
	store    Searcher
	logger   *zap.Logger
}

// New creates a retriever.
func New(embedder Embedder, store Searcher, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger}
}

// Retrieve returns up to k chunks ranked by similarity to question. k <= 0
// falls back to DefaultTopK.
//
// Failure policy: an embedding failure propagates, since the question cannot
// be answered without a query vector. A store failure degrades to an empty
// result with a logged warning, so the answer flow reports "no relevant
// information" instead of an error.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]*models.RetrievedChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	query, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	results, err := r.store.Search(ctx, query, k)
	if err != nil {
		r.logger.Warn("chunk store search failed, degrading to empty retrieval", zap.Error(err))
		return nil, nil
	}
	return results, nil
}
