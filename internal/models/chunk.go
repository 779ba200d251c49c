// Package models defines core data structures for chunks, retrieval results,
// answers, and conversation messages.
package models

import (
	"time"
	"unicode/utf8"
)

// Chunk is a contiguous slice of a source document's text with its embedding
// and provenance. Chunks are immutable once stored.
type Chunk struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Text       string    `json:"text"`
	ChunkIndex int       `json:"chunk_index"`
	Page       int       `json:"page,omitempty"`
	LineStart  int       `json:"line_start,omitempty"`
	LineEnd    int       `json:"line_end,omitempty"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// RetrievedChunk is a single similarity-search hit: a chunk plus its score.
// Scores are comparable only relative to each other, not on a fixed scale.
type RetrievedChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// Citation points an answer back to a supporting chunk.
type Citation struct {
	Source     string `json:"source"`
	Page       int    `json:"page,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Preview    string `json:"preview,omitempty"`
}

// CitationFor builds a citation from a chunk with a short text preview.
// The preview is cut on a rune boundary so multi-byte text stays valid UTF-8.
func CitationFor(c *Chunk, previewLen int) Citation {
	preview := c.Text
	if previewLen > 0 && len(preview) > previewLen {
		cut := previewLen
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	return Citation{
		Source:     c.Source,
		Page:       c.Page,
		ChunkIndex: c.ChunkIndex,
		Preview:    preview,
	}
}

// Answer is a generated response with the citations that support it.
// Citations are empty when the answer is the canonical unknown message.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
}
