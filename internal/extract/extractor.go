// Package extract provides text extraction from uploaded document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lu4p/cat"

	"github.com/opsmind-ai/opsmind/pkg/utils"
)

// ErrMalformed reports a document that could not be parsed in its declared
// format. Callers treat it as a bad input, not a pipeline fault.
var ErrMalformed = errors.New("malformed document")

// Result is extracted document content. Text has blank-line runs collapsed.
// PageOffsets holds the character offset where each page starts in Text; for
// formats without page structure it is a single zero offset.
type Result struct {
	Text        string
	Pages       int
	PageOffsets []int
}

// PageAt returns the 1-based page containing character offset off.
func (r *Result) PageAt(off int) int {
	if len(r.PageOffsets) == 0 {
		return 1
	}
	page := 1
	for i, start := range r.PageOffsets {
		if off >= start {
			page = i + 1
		}
	}
	return page
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content with page
// structure. ODT and RTF go through lu4p/cat (which needs a file path); all
// other formats are handled from bytes.
func (e *Extractor) Extract(path string) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".odt", ".rtf":
		text, err := cat.File(path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w: %v", ext, ErrMalformed, err)
		}
		return singlePage(text), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Unknown extensions are
// treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Result, error) {
	switch ext {
	case ".pdf":
		res, err := extractPDF(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return res, nil
	case ".docx":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return singlePage(text), nil
	case ".xlsx":
		text, err := extractExcel(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return singlePage(text), nil
	default:
		text, err := extractPlain(content)
		if err != nil {
			return nil, err
		}
		return singlePage(text), nil
	}
}

// singlePage wraps unpaged text into a one-page result.
func singlePage(text string) *Result {
	return &Result{
		Text:        utils.CollapseBlankLines(text),
		Pages:       1,
		PageOffsets: []int{0},
	}
}
