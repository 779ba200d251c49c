package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("Hello world\nLine 2"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got.Text != "Hello world\nLine 2" {
		t.Errorf("got %q", got.Text)
	}
	if got.Pages != 1 || len(got.PageOffsets) != 1 || got.PageOffsets[0] != 0 {
		t.Errorf("pages = %d offsets = %v", got.Pages, got.PageOffsets)
	}
}

func TestExtractBytes_plainCollapsesBlankRuns(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("a\n\n\nb\n \nc"), ".md")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got.Text != "a\nb\nc" {
		t.Errorf("got %q", got.Text)
	}
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("hello\x80world"), ".rst")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got.Text != "hello�world" {
		t.Errorf("got %q", got.Text)
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	e := NewExtractor()
	got, err := e.ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got.Text != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got.Text)
	}
}

// minimalDocx builds a .docx zip with the given document.xml body.
func minimalDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes_docx(t *testing.T) {
	doc := `<w:document><w:body>` +
		`<w:p w:rsidR="00A"><w:r><w:t>First </w:t></w:r><w:r><w:t xml:space="preserve">paragraph</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Fish &amp; chips</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	e := NewExtractor()
	got, err := e.ExtractBytes(minimalDocx(t, doc), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got.Text != "First paragraph\nFish & chips" {
		t.Errorf("got %q", got.Text)
	}
}

func TestExtractBytes_docxNotZip(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error for non-zip docx")
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("%PDF-garbage"), ".pdf"); err == nil {
		t.Error("expected error for malformed PDF")
	}
}

func TestExtract_plainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor()
	got, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Text != "File content" {
		t.Errorf("got %q", got.Text)
	}
}

func TestExtract_missingFile(t *testing.T) {
	e := NewExtractor()
	if _, err := e.Extract(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestResult_PageAt(t *testing.T) {
	r := &Result{Text: "aaaa bbbb cccc", Pages: 3, PageOffsets: []int{0, 5, 10}}
	cases := []struct {
		off  int
		page int
	}{
		{0, 1}, {4, 1}, {5, 2}, {9, 2}, {10, 3}, {100, 3},
	}
	for _, c := range cases {
		if got := r.PageAt(c.off); got != c.page {
			t.Errorf("PageAt(%d) = %d, want %d", c.off, got, c.page)
		}
	}
}

func TestResult_PageAtNoOffsets(t *testing.T) {
	r := &Result{Text: "x"}
	if got := r.PageAt(0); got != 1 {
		t.Errorf("PageAt = %d, want 1", got)
	}
}
