package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/opsmind-ai/opsmind/pkg/utils"
)

// extractPDF extracts text page by page, recording where each page starts in
// the concatenated text so chunks can be attributed to pages. Blank-line
// collapsing happens per page, before offsets are taken, so the recorded
// offsets stay valid.
func extractPDF(content []byte) (*Result, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	var buf strings.Builder
	numPages := r.NumPage()
	offsets := make([]int, 0, numPages)
	for i := 0; i < numPages; i++ {
		offsets = append(offsets, buf.Len())
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		text = utils.CollapseBlankLines(text)
		buf.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			buf.WriteByte('\n')
		}
	}
	return &Result{Text: buf.String(), Pages: numPages, PageOffsets: offsets}, nil
}
