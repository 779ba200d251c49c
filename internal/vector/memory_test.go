package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func unit(vals ...float32) []float32 {
	var sum float64
	for _, v := range vals {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vals
	}
	norm := float32(1.0 / L2Norm(vals))
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = v * norm
	}
	return out
}

func TestMemoryIndex_SearchRanking(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := idx.Add(ctx, "x", unit(1, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, "y", unit(0, 1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, "xy", unit(1, 1, 0)); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(ctx, unit(1, 0.1, 0), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "x" {
		t.Errorf("top result = %s, want x", results[0].ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("scores not non-increasing")
	}
}

func TestMemoryIndex_TieBreakInsertionOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	v := unit(1, 0)
	_ = idx.Add(ctx, "second", v)
	_ = idx.Add(ctx, "first-tie", v)

	results, err := idx.Search(ctx, v, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "second" {
		t.Errorf("earlier-inserted entry should win ties, got %s first", results[0].ID)
	}
}

func TestMemoryIndex_EmptyAndLimit(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	results, err := idx.Search(ctx, unit(1, 0), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Error("empty index should return no results")
	}
	_ = idx.Add(ctx, "a", unit(1, 0))
	results, _ = idx.Search(ctx, unit(1, 0), 5)
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Add(ctx, "a", []float32{1, 0}); err == nil {
		t.Error("expected error adding 2d vector to 3d index")
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Error("expected error searching with 2d query")
	}
}

func TestMemoryIndex_Remove(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, "a", unit(1, 0))
	_ = idx.Add(ctx, "b", unit(0, 1))
	if err := idx.Remove(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("size after remove = %d", idx.Size())
	}
	results, _ := idx.Search(ctx, unit(1, 0), 2)
	for _, r := range results {
		if r.ID == "a" {
			t.Error("removed entry still returned")
		}
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.idx")
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	v := unit(1, 0)
	_ = idx.Add(ctx, "a", v)
	_ = idx.Add(ctx, "b", v) // tie with a; a inserted first
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size = %d", loaded.Size())
	}
	results, err := loaded.Search(ctx, v, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "a" {
		t.Error("tie-break order not preserved across save/load")
	}

	// New additions continue the sequence.
	if err := loaded.Add(ctx, "c", v); err != nil {
		t.Fatal(err)
	}
	results, _ = loaded.Search(ctx, v, 3)
	if results[2].ID != "c" {
		t.Error("entry added after load should lose ties to loaded entries")
	}
}

func TestMemoryIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Load(filepath.Join(t.TempDir(), "absent.idx")); err != nil {
		t.Errorf("missing file should not error: %v", err)
	}
}
