package embedding

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/opsmind-ai/opsmind/pkg/utils"
)

// Service fronts an Embedder with the process-wide warm-up and caching policy:
// the backend is opened at most once, on first use, and the open error is
// latched so every subsequent call fails the same way. Returned vectors are
// L2-normalized so cosine similarity reduces to a dot product.
type Service struct {
	open       func() (Embedder, error)
	dimensions int
	cache      *cache
	logger     *zap.Logger

	once    sync.Once
	backend Embedder
	openErr error
}

// NewService creates a service over a lazily opened backend. open is invoked
// once, on the first Embed call; it may be slow (model load takes seconds).
// dimensions is the embedding dimensionality the backend must produce.
func NewService(open func() (Embedder, error), dimensions, cacheSize int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		open:       open,
		dimensions: dimensions,
		cache:      newCache(cacheSize),
		logger:     logger,
	}
}

// warm opens the backend exactly once. Concurrent first calls block until the
// single open completes; a failed open is permanent for the process.
func (s *Service) warm() (Embedder, error) {
	s.once.Do(func() {
		s.logger.Info("loading embedding model")
		s.backend, s.openErr = s.open()
		if s.openErr != nil {
			s.logger.Error("embedding model load failed", zap.Error(s.openErr))
			return
		}
		s.logger.Info("embedding model loaded", zap.Int("dimensions", s.dimensions))
	})
	if s.openErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, s.openErr)
	}
	return s.backend, nil
}

// Embed returns the unit-length embedding of text. The same text always yields
// the same vector.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := s.cache.get(text); ok {
		return cached, nil
	}
	backend, err := s.warm()
	if err != nil {
		return nil, err
	}
	vec, err := backend.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vec) != s.dimensions {
		return nil, fmt.Errorf("%w: backend returned %d dimensions, expected %d", ErrUnavailable, len(vec), s.dimensions)
	}
	utils.NormalizeL2(vec)
	s.cache.set(text, vec)
	return vec, nil
}

// EmbedBatch embeds each text in order, reusing the cache.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding dimensionality D.
func (s *Service) Dimensions() int {
	return s.dimensions
}

// Close tears down the backend if it was opened.
func (s *Service) Close() error {
	if s.backend != nil {
		return s.backend.Close()
	}
	return nil
}
