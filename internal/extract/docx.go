package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a
// .docx zip.
const docxDocumentXMLPath = "word/document.xml"

const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document part.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// wtTag matches <w:t>text</w:t> including tags with attributes such as
// xml:space="preserve".
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// paragraphEnd splits the document body into paragraphs.
var paragraphEnd = regexp.MustCompile(`</w:p>`)

// partNameRe and partNameRe2 extract the main document PartName from
// [Content_Types].xml, covering both attribute orders.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// findDocxMainDocumentPath reads [Content_Types].xml for the main document
// part path. Returns empty when absent or unreadable.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != contentTypesPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return ""
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return ""
		}
		content := string(data)
		if m := partNameRe.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
		if m := partNameRe2.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
		return ""
	}
	return ""
}

// extractDOCX extracts text from .docx bytes. DOCX is a ZIP containing
// word/document.xml (OOXML); all <w:t>...</w:t> text nodes are collected so
// content survives regardless of paragraph or run attributes, one output line
// per paragraph.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: open %s: %w", f.Name, err)
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
		}
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	var b strings.Builder
	for _, para := range paragraphEnd.Split(string(docXML), -1) {
		runs := wtTag.FindAllStringSubmatch(para, -1)
		if len(runs) == 0 {
			continue
		}
		var line strings.Builder
		for _, r := range runs {
			line.WriteString(xmlEntities.Replace(r[1]))
		}
		text := strings.TrimSpace(line.String())
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}
