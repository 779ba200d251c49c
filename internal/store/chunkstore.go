// Package store provides the chunk store: durable chunk rows in SQLite plus
// an in-memory vector index for similarity search.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsmind-ai/opsmind/internal/models"
	"github.com/opsmind-ai/opsmind/internal/storage"
	"github.com/opsmind-ai/opsmind/internal/vector"
)

// ErrDimensionMismatch reports an embedding whose length disagrees with the
// store's pinned dimensionality D.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrUnavailable reports that the underlying storage or index failed.
var ErrUnavailable = errors.New("chunk store unavailable")

// ChunkStore persists chunks and serves similarity search over their
// embeddings. Dimensionality is pinned on the first Put and persisted, so a
// config change across restarts is caught instead of silently mixing vector
// spaces.
type ChunkStore struct {
	storage storage.Storage
	index   vector.Index
	logger  *zap.Logger

	mu     sync.Mutex
	pinned bool // dimensions recorded in meta
	dims   int
}

// New creates a chunk store over the given storage and index. dims is the
// embedding dimensionality the index was created with.
func New(st storage.Storage, idx vector.Index, dims int, logger *zap.Logger) *ChunkStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChunkStore{storage: st, index: idx, dims: dims, logger: logger}
}

// Init verifies the pinned dimensionality against dims and rebuilds the
// vector index from storage when the index is empty but chunks exist (e.g.
// no snapshot was saved on last shutdown).
func (s *ChunkStore) Init(ctx context.Context) error {
	metaDims, err := s.storage.GetMeta(ctx, storage.MetaDimensions)
	if err != nil {
		return fmt.Errorf("%w: read meta: %v", ErrUnavailable, err)
	}
	if metaDims != "" {
		pinned, err := strconv.Atoi(metaDims)
		if err != nil {
			return fmt.Errorf("corrupt dimensions meta %q: %w", metaDims, err)
		}
		if pinned != s.dims {
			return fmt.Errorf("%w: store holds %d-dimensional embeddings, configured for %d (re-index required)",
				ErrDimensionMismatch, pinned, s.dims)
		}
		s.pinned = true
	}

	count, err := s.storage.CountChunks(ctx)
	if err != nil {
		return fmt.Errorf("%w: count chunks: %v", ErrUnavailable, err)
	}
	if count > 0 && s.index.Size() == 0 {
		s.logger.Info("rebuilding vector index from storage", zap.Int64("chunks", count))
		vectors, err := s.storage.AllChunkVectors(ctx)
		if err != nil {
			return fmt.Errorf("%w: load vectors: %v", ErrUnavailable, err)
		}
		for _, cv := range vectors {
			if err := s.index.Add(ctx, cv.ID, cv.Embedding); err != nil {
				return fmt.Errorf("rebuild index: %w", err)
			}
		}
	}
	return nil
}

// Put persists a chunk and indexes its embedding, returning the stored ID.
// The first successful Put pins the store's dimensionality.
func (s *ChunkStore) Put(ctx context.Context, chunk *models.Chunk) (string, error) {
	if chunk.Text == "" {
		return "", fmt.Errorf("chunk text must not be empty")
	}
	if len(chunk.Embedding) != s.dims {
		return "", fmt.Errorf("%w: got %d, store dimensionality is %d", ErrDimensionMismatch, len(chunk.Embedding), s.dims)
	}
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	if err := s.storage.CreateChunk(ctx, chunk); err != nil {
		return "", fmt.Errorf("%w: store chunk: %v", ErrUnavailable, err)
	}
	if err := s.index.Add(ctx, chunk.ID, chunk.Embedding); err != nil {
		return "", fmt.Errorf("index chunk: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pinned {
		if err := s.storage.SetMeta(ctx, storage.MetaDimensions, strconv.Itoa(s.dims)); err != nil {
			return "", fmt.Errorf("%w: pin dimensions: %v", ErrUnavailable, err)
		}
		s.pinned = true
	}
	return chunk.ID, nil
}

// Search returns up to k chunks ranked by similarity to query, highest first.
// Ties go to the earlier-inserted chunk. An empty store returns an empty
// result, not an error.
func (s *ChunkStore) Search(ctx context.Context, query []float32, k int) ([]*models.RetrievedChunk, error) {
	if len(query) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, store dimensionality is %d", ErrDimensionMismatch, len(query), s.dims)
	}
	hits, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", ErrUnavailable, err)
	}
	results := make([]*models.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, err := s.storage.GetChunk(ctx, hit.ID)
		if err != nil {
			// Index and storage can briefly disagree after a delete; skip
			// rather than failing the whole query.
			s.logger.Warn("indexed chunk missing from storage", zap.String("id", hit.ID), zap.Error(err))
			continue
		}
		results = append(results, &models.RetrievedChunk{Chunk: chunk, Score: hit.Score})
	}
	return results, nil
}

// Delete removes all chunks of a source document from storage and the index,
// returning how many were removed.
func (s *ChunkStore) Delete(ctx context.Context, source string) (int64, error) {
	chunks, err := s.storage.GetChunksBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("%w: load chunks: %v", ErrUnavailable, err)
	}
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	n, err := s.storage.DeleteChunksBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("%w: delete chunks: %v", ErrUnavailable, err)
	}
	if err := s.index.Remove(ctx, ids); err != nil {
		return n, fmt.Errorf("remove vectors: %w", err)
	}
	return n, nil
}

// Dimensions returns the store's embedding dimensionality D.
func (s *ChunkStore) Dimensions() int {
	return s.dims
}

// IndexSize returns the number of vectors currently indexed.
func (s *ChunkStore) IndexSize() int {
	return s.index.Size()
}

// CountChunks returns the number of stored chunks.
func (s *ChunkStore) CountChunks(ctx context.Context) (int64, error) {
	return s.storage.CountChunks(ctx)
}

// CountSources returns the number of distinct source documents.
func (s *ChunkStore) CountSources(ctx context.Context) (int64, error) {
	return s.storage.CountSources(ctx)
}

// ListSources returns the distinct source documents.
func (s *ChunkStore) ListSources(ctx context.Context) ([]string, error) {
	return s.storage.ListSources(ctx)
}

// SaveIndex persists the vector index snapshot to path.
func (s *ChunkStore) SaveIndex(path string) error {
	return s.index.Save(path)
}
