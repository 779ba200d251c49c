package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "llama3" || req.Stream {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "  X is Y.\n", Done: true})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "llama3", time.Second)
	got, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "X is Y." {
		t.Errorf("got %q", got)
	}
}

func TestOllamaGenerator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "llama3", time.Second)
	_, err := g.Generate(context.Background(), "prompt")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestOllamaGenerator_Unreachable(t *testing.T) {
	g := NewOllamaGenerator("http://127.0.0.1:1", "llama3", 200*time.Millisecond)
	_, err := g.Generate(context.Background(), "prompt")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
