// Package storage defines the persistence interface for chunks and conversation messages.
package storage

import (
	"context"

	"github.com/opsmind-ai/opsmind/internal/models"
)

// Storage defines chunk and message persistence operations.
type Storage interface {
	// Chunk operations
	CreateChunk(ctx context.Context, chunk *models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunksBySource(ctx context.Context, source string) ([]*models.Chunk, error)
	DeleteChunksBySource(ctx context.Context, source string) (int64, error)
	// AllChunkVectors returns (id, embedding) pairs for every chunk in
	// insertion order, for rebuilding the vector index at startup.
	AllChunkVectors(ctx context.Context) ([]ChunkVector, error)

	// Message operations. AppendMessage is a single atomic insert so
	// concurrent appends to one session cannot lose each other.
	AppendMessage(ctx context.Context, sessionKey string, msg *models.Message) error
	GetMessages(ctx context.Context, sessionKey string) ([]*models.Message, error)
	DeleteMessages(ctx context.Context, sessionKey string) error

	// Meta operations (embedding dimensionality pin, etc.)
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// Stats
	CountChunks(ctx context.Context) (int64, error)
	CountSources(ctx context.Context) (int64, error)
	ListSources(ctx context.Context) ([]string, error)

	Close() error
}

// ChunkVector pairs a chunk ID with its stored embedding.
type ChunkVector struct {
	ID        string
	Embedding []float32
}

// MetaDimensions is the meta key holding the pinned embedding dimensionality.
const MetaDimensions = "embedding_dimensions"
