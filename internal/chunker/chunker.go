// Package chunker splits text into fixed-size overlapping character windows.
package chunker

import (
	"errors"
	"fmt"
)

// Default window parameters, in characters.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// ErrInvalidParams reports chunking parameters that violate
// size > 0 and 0 <= overlap < size.
var ErrInvalidParams = errors.New("invalid chunking parameters")

// Chunker produces overlapping character windows over text.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker after validating size and overlap.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidParams, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, size), got %d", ErrInvalidParams, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into windows of at most c.size characters, each window
// starting c.size-c.overlap after the previous one. The final window is
// clipped to the remaining text and never dropped. Empty text yields nil.
func (c *Chunker) Chunk(text string) []string {
	return split(text, c.size, c.overlap)
}

// Offsets returns the start offset of each window Chunk would produce for a
// text of length n.
func (c *Chunker) Offsets(n int) []int {
	return Offsets(n, c.size, c.overlap)
}

// Split is the pure chunking function: windows [start, start+size) advancing
// by size-overlap until start reaches len(text). Parameters are validated.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidParams, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, size), got %d", ErrInvalidParams, overlap)
	}
	return split(text, size, overlap), nil
}

func split(text string, size, overlap int) []string {
	if len(text) == 0 {
		return nil
	}
	step := size - overlap
	chunks := make([]string, 0, (len(text)+step-1)/step)
	for start := 0; ; start += step {
		end := start + size
		if end >= len(text) {
			// Final window: clipped to the end, and no window starts past it.
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}

// Offsets returns the start offset of each window Split would produce for a
// text of length n. Used to attribute chunks to pages and line ranges.
func Offsets(n, size, overlap int) []int {
	if n == 0 || size <= 0 || overlap < 0 || overlap >= size {
		return nil
	}
	step := size - overlap
	offsets := make([]int, 0, (n+step-1)/step)
	for start := 0; ; start += step {
		offsets = append(offsets, start)
		if start+size >= n {
			break
		}
	}
	return offsets
}
