package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/opsmind-ai/opsmind/internal/chunker"
	"github.com/opsmind-ai/opsmind/internal/extract"
	"github.com/opsmind-ai/opsmind/internal/models"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// fakeWriter records operations in order to verify replacement semantics.
type fakeWriter struct {
	ops     []string
	puts    []*models.Chunk
	deletes []string
	putErr  error
}

func (f *fakeWriter) Put(_ context.Context, chunk *models.Chunk) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.ops = append(f.ops, "put")
	f.puts = append(f.puts, chunk)
	return "id", nil
}

func (f *fakeWriter) Delete(_ context.Context, source string) (int64, error) {
	f.ops = append(f.ops, "delete")
	f.deletes = append(f.deletes, source)
	return int64(len(f.puts)), nil
}

func newTestIngestor(t *testing.T, w *fakeWriter, e Embedder, size, overlap int) *Ingestor {
	t.Helper()
	ch, err := chunker.New(size, overlap)
	if err != nil {
		t.Fatal(err)
	}
	return New(extract.NewExtractor(), ch, e, w, zap.NewNop())
}

func TestIngestBytes_ChunksAndProvenance(t *testing.T) {
	w := &fakeWriter{}
	in := newTestIngestor(t, w, &fakeEmbedder{}, 1000, 200)

	text := strings.Repeat("a", 2500)
	res, err := in.IngestBytes(context.Background(), "notes.txt", []byte(text))
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 3 || res.Source != "notes.txt" || res.Pages != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(w.puts) != 3 {
		t.Fatalf("stored %d chunks", len(w.puts))
	}
	for i, c := range w.puts {
		if c.ChunkIndex != i || c.Source != "notes.txt" || c.Page != 1 {
			t.Errorf("chunk %d = %+v", i, c)
		}
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d missing embedding", i)
		}
	}
	if len(w.puts[0].Text) != 1000 || len(w.puts[2].Text) != 900 {
		t.Errorf("chunk lengths = %d, %d", len(w.puts[0].Text), len(w.puts[2].Text))
	}
}

func TestIngestBytes_LineAttribution(t *testing.T) {
	w := &fakeWriter{}
	in := newTestIngestor(t, w, &fakeEmbedder{}, 10, 0)

	// Lines: "aaaa"(1) "bbbb"(2) "cccc"(3) "dddd"(4); windows of 10 bytes.
	res, err := in.IngestBytes(context.Background(), "lines.txt", []byte("aaaa\nbbbb\ncccc\ndddd"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 2 {
		t.Fatalf("chunks = %d", res.Chunks)
	}
	first, second := w.puts[0], w.puts[1]
	if first.LineStart != 1 || first.LineEnd != 2 {
		t.Errorf("first chunk lines = %d..%d", first.LineStart, first.LineEnd)
	}
	if second.LineStart != 3 || second.LineEnd != 4 {
		t.Errorf("second chunk lines = %d..%d", second.LineStart, second.LineEnd)
	}
}

func TestIngestBytes_ReplaceBeforeStore(t *testing.T) {
	w := &fakeWriter{}
	in := newTestIngestor(t, w, &fakeEmbedder{}, 1000, 200)

	if _, err := in.IngestBytes(context.Background(), "doc.txt", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if len(w.ops) == 0 || w.ops[0] != "delete" {
		t.Errorf("ops = %v, delete must precede puts", w.ops)
	}
	if len(w.deletes) != 1 || w.deletes[0] != "doc.txt" {
		t.Errorf("deletes = %v", w.deletes)
	}
}

func TestIngestBytes_EmbedFailureLeavesStoreIntact(t *testing.T) {
	w := &fakeWriter{}
	in := newTestIngestor(t, w, &fakeEmbedder{err: errors.New("backend down")}, 1000, 200)

	_, err := in.IngestBytes(context.Background(), "doc.txt", []byte("hello"))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(w.ops) != 0 {
		t.Errorf("ops = %v, nothing may be deleted or stored on embed failure", w.ops)
	}
}

func TestIngestBytes_EmptyDocument(t *testing.T) {
	w := &fakeWriter{}
	emb := &fakeEmbedder{}
	in := newTestIngestor(t, w, emb, 1000, 200)

	res, err := in.IngestBytes(context.Background(), "empty.txt", []byte("  \n \n "))
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 0 {
		t.Errorf("chunks = %d", res.Chunks)
	}
	if emb.calls != 0 {
		t.Error("embedder must not run for empty documents")
	}
	if len(w.deletes) != 1 {
		t.Errorf("deletes = %v, stale chunks must still be replaced", w.deletes)
	}
}

func TestIngestFile_SourceIsBaseName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "handbook.md")
	if err := os.WriteFile(path, []byte("refund policy"), 0600); err != nil {
		t.Fatal(err)
	}

	w := &fakeWriter{}
	in := newTestIngestor(t, w, &fakeEmbedder{}, 1000, 200)
	res, err := in.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != "handbook.md" {
		t.Errorf("source = %q", res.Source)
	}
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.txt":       "alpha",
		"b.md":        "bravo",
		"ignored.bin": "\x00\x01",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "c.txt"), []byte("charlie"), 0600); err != nil {
		t.Fatal(err)
	}

	w := &fakeWriter{}
	in := newTestIngestor(t, w, &fakeEmbedder{}, 1000, 200)

	results, err := in.IngestDirectory(context.Background(), dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("non-recursive ingested %d files, want 2", len(results))
	}

	w2 := &fakeWriter{}
	in2 := newTestIngestor(t, w2, &fakeEmbedder{}, 1000, 200)
	results, err = in2.IngestDirectory(context.Background(), dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("recursive ingested %d files, want 3", len(results))
	}
}

func TestIsSupported(t *testing.T) {
	for _, path := range []string{"a.txt", "b.PDF", "c.docx", "d.xlsx", "e.odt", "f.rtf", "g.md"} {
		if !IsSupported(path) {
			t.Errorf("%s should be supported", path)
		}
	}
	for _, path := range []string{"a.bin", "b.exe", "noext"} {
		if IsSupported(path) {
			t.Errorf("%s should not be supported", path)
		}
	}
}
