// Package ingest turns document files into embedded chunks in the store.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/opsmind-ai/opsmind/internal/chunker"
	"github.com/opsmind-ai/opsmind/internal/extract"
	"github.com/opsmind-ai/opsmind/internal/models"
)

// SupportedExtensions lists the file extensions the pipeline accepts.
var SupportedExtensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".odt", ".rtf", ".xlsx"}

// IsSupported reports whether path has an ingestable extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Embedder embeds chunk texts into unit vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkWriter is the slice of the chunk store ingestion needs.
type ChunkWriter interface {
	Put(ctx context.Context, chunk *models.Chunk) (string, error)
	Delete(ctx context.Context, source string) (int64, error)
}

// Result summarizes one ingested document.
type Result struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
	Pages  int    `json:"pages"`
}

// Ingestor extracts, chunks, embeds, and stores documents. Re-ingesting a
// source replaces its previous chunks; the old version is removed only after
// the new embeddings exist, so a mid-pipeline failure leaves the store intact.
type Ingestor struct {
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	embedder  Embedder
	store     ChunkWriter
	logger    *zap.Logger
}

// New creates an ingestor.
func New(extractor *extract.Extractor, ch *chunker.Chunker, embedder Embedder, store ChunkWriter, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		logger:    logger,
	}
}

// IngestFile ingests the file at path. The source name is the base filename,
// which is also the replacement key for re-ingestion.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (*Result, error) {
	extracted, err := in.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return in.ingest(ctx, filepath.Base(path), extracted)
}

// IngestBytes ingests in-memory content under the given source name. The
// format is chosen by the source's extension.
func (in *Ingestor) IngestBytes(ctx context.Context, source string, content []byte) (*Result, error) {
	extracted, err := in.extractor.ExtractBytes(content, strings.ToLower(filepath.Ext(source)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}
	return in.ingest(ctx, source, extracted)
}

func (in *Ingestor) ingest(ctx context.Context, source string, extracted *extract.Result) (*Result, error) {
	text := extracted.Text
	if strings.TrimSpace(text) == "" {
		if _, err := in.store.Delete(ctx, source); err != nil {
			return nil, fmt.Errorf("replace %s: %w", source, err)
		}
		in.logger.Info("ingested empty document", zap.String("source", source))
		return &Result{Source: source, Chunks: 0, Pages: extracted.Pages}, nil
	}

	texts := in.chunker.Chunk(text)
	offsets := in.chunker.Offsets(len(text))

	embeddings, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", source, err)
	}

	if _, err := in.store.Delete(ctx, source); err != nil {
		return nil, fmt.Errorf("replace %s: %w", source, err)
	}

	lineStart := 1
	scanned := 0
	for i, chunkText := range texts {
		off := offsets[i]
		lineStart += strings.Count(text[scanned:off], "\n")
		scanned = off
		lineEnd := lineStart + strings.Count(strings.TrimSuffix(chunkText, "\n"), "\n")
		chunk := &models.Chunk{
			Source:     source,
			Text:       chunkText,
			ChunkIndex: i,
			Page:       extracted.PageAt(off),
			LineStart:  lineStart,
			LineEnd:    lineEnd,
			Embedding:  embeddings[i],
		}
		if _, err := in.store.Put(ctx, chunk); err != nil {
			return nil, fmt.Errorf("store chunk %d of %s: %w", i, source, err)
		}
	}

	in.logger.Info("ingested document",
		zap.String("source", source),
		zap.Int("chunks", len(texts)),
		zap.Int("pages", extracted.Pages))
	return &Result{Source: source, Chunks: len(texts), Pages: extracted.Pages}, nil
}

// Remove deletes every chunk of source. Returns the number of chunks removed.
func (in *Ingestor) Remove(ctx context.Context, source string) (int64, error) {
	return in.store.Delete(ctx, source)
}

// IngestDirectory walks dir and ingests every supported file. Per-file
// failures are logged and skipped so one broken document does not abort the
// whole run.
func (in *Ingestor) IngestDirectory(ctx context.Context, dir string, recursive bool) ([]*Result, error) {
	var results []*Result
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !IsSupported(path) {
			return nil
		}
		res, err := in.IngestFile(ctx, path)
		if err != nil {
			in.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
			return nil
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("walk %s: %w", dir, err)
	}
	return results, nil
}
