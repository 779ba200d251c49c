package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type entry struct {
	id  string
	vec []float32
	seq uint64 // insertion order; earlier entries win score ties
}

// MemoryIndex is a brute-force inner-product index. It scales comfortably to
// tens of thousands of chunks; swap in an ANN structure behind Index if a
// corpus outgrows it.
type MemoryIndex struct {
	dimensions int
	entries    []entry
	nextSeq    uint64
	mu         sync.RWMutex
}

// NewMemoryIndex creates an index for vectors of the given dimensionality.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Add appends one vector under id.
func (m *MemoryIndex) Add(ctx context.Context, id string, vec []float32) error {
	if len(vec) != m.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), m.dimensions)
	}
	cp := make([]float32, m.dimensions)
	copy(cp, vec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{id: id, vec: cp, seq: m.nextSeq})
	m.nextSeq++
	return nil
}

// Search returns up to k results ordered by descending score; equal scores
// are ordered by insertion (earlier entry first) so results are deterministic.
// An empty index yields an empty result, not an error.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	type scored struct {
		id    string
		score float64
		seq   uint64
	}
	scores := make([]scored, len(m.entries))
	for i, e := range m.entries {
		var dot float64
		for j := 0; j < m.dimensions; j++ {
			dot += float64(query[j]) * float64(e.vec[j])
		}
		scores[i] = scored{id: e.id, score: dot, seq: e.seq}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].seq < scores[j].seq
	})
	if k > len(scores) {
		k = len(scores)
	}
	out := make([]*Result, k)
	for i := 0; i < k; i++ {
		out[i] = &Result{ID: scores[i].id, Score: scores[i].score}
	}
	return out, nil
}

// Remove deletes all entries whose ID is in ids. Remaining entries keep their
// sequence numbers so tie-break order is stable across deletions.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !drop[e.id] {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

// Save persists the index to path. Format: dimensions (u32), count (u32),
// then per entry: seq (u64), idLen (u32), id bytes, vector floats.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.entries))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, e := range m.entries {
		if err := binary.Write(f, binary.LittleEndian, e.seq); err != nil {
			return fmt.Errorf("write seq: %w", err)
		}
		idBytes := []byte(e.id)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := f.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := binary.Write(f, binary.LittleEndian, e.vec); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load replaces the index contents from path. A missing file is not an error;
// the index is left empty. Dimensions must match.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	entries := make([]entry, 0, n)
	var maxSeq uint64
	for i := uint32(0); i < n; i++ {
		var e entry
		if err := binary.Read(f, binary.LittleEndian, &e.seq); err != nil {
			return fmt.Errorf("read seq: %w", err)
		}
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("read id len: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		e.id = string(idBytes)
		e.vec = make([]float32, m.dimensions)
		if err := binary.Read(f, binary.LittleEndian, e.vec); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		if e.seq >= maxSeq {
			maxSeq = e.seq + 1
		}
		entries = append(entries, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	m.nextSeq = maxSeq
	return nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

// InnerProduct returns the inner product of two vectors; for unit vectors it
// equals cosine similarity.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the Euclidean norm of x.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
