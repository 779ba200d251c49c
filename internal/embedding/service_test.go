package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// countingEmbedder records how many times it was opened and called.
type countingEmbedder struct {
	mock  *MockEmbedder
	calls int
	mu    sync.Mutex
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.mock.Embed(ctx, text)
}

func (c *countingEmbedder) Dimensions() int { return c.mock.Dimensions() }
func (c *countingEmbedder) Close() error    { return nil }

func TestService_LazyOpenOnce(t *testing.T) {
	opens := 0
	backend := &countingEmbedder{mock: NewMockEmbedder(8)}
	svc := NewService(func() (Embedder, error) {
		opens++
		return backend, nil
	}, 8, 16, zap.NewNop())

	if opens != 0 {
		t.Fatal("backend opened before first use")
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Embed(ctx, "warm"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if opens != 1 {
		t.Errorf("backend opened %d times, want 1", opens)
	}
}

func TestService_OpenErrorLatched(t *testing.T) {
	opens := 0
	svc := NewService(func() (Embedder, error) {
		opens++
		return nil, errors.New("no model file")
	}, 8, 16, zap.NewNop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Embed(ctx, "x")
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	}
	if opens != 1 {
		t.Errorf("open retried %d times, want 1", opens)
	}
}

func TestService_DeterministicAndNormalized(t *testing.T) {
	svc := NewService(func() (Embedder, error) {
		return NewMockEmbedder(16), nil
	}, 16, 16, zap.NewNop())
	ctx := context.Background()

	a, err := svc.Embed(ctx, "the refund policy")
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Embed(ctx, "the refund policy")
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d", i)
		}
	}
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-5 {
		t.Errorf("embedding norm = %f, want 1", math.Sqrt(sum))
	}
}

func TestService_CacheAvoidsBackendCalls(t *testing.T) {
	backend := &countingEmbedder{mock: NewMockEmbedder(8)}
	svc := NewService(func() (Embedder, error) { return backend, nil }, 8, 16, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.Embed(ctx, "same text"); err != nil {
			t.Fatal(err)
		}
	}
	if backend.calls != 1 {
		t.Errorf("backend called %d times, want 1", backend.calls)
	}
}

func TestService_DimensionCheck(t *testing.T) {
	svc := NewService(func() (Embedder, error) {
		return NewMockEmbedder(8), nil
	}, 16, 16, zap.NewNop())
	if _, err := svc.Embed(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on dimension disagreement, got %v", err)
	}
}

func TestService_EmbedBatch(t *testing.T) {
	svc := NewService(func() (Embedder, error) {
		return NewMockEmbedder(8), nil
	}, 8, 16, zap.NewNop())
	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 8 {
			t.Errorf("vector %d has %d dimensions", i, len(v))
		}
	}
}
