//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

// ONNXEmbedder stub type when built without CGO (see onnx.go for the real implementation).
type ONNXEmbedder struct{}

// NewONNXEmbedder returns an error when built without CGO (ONNX not available).
func NewONNXEmbedder(_ string, _, _ int) (*ONNXEmbedder, error) {
	return nil, errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Embed satisfies Embedder; never reachable since the constructor always errors.
func (e *ONNXEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("ONNX embedder not available")
}

// Dimensions satisfies Embedder.
func (e *ONNXEmbedder) Dimensions() int { return 0 }

// Close satisfies Embedder.
func (e *ONNXEmbedder) Close() error { return nil }
