//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a local sentence-embedding model with ONNX Runtime.
// Requires CGO and the onnxruntime shared library; without them the stub in
// onnx_stub.go is compiled instead. Inference is serialized on a mutex since
// the tensors are reused across calls.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
	mu            sync.Mutex
}

// NewONNXEmbedder loads the model at modelPath. This is the slow path the
// Service defers until first use.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}
	ids, mask, types := tokenize("", maxTokens)

	inputIDs, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), ids)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	attentionMask, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), mask)
	if err != nil {
		inputIDs.Destroy()
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	tokenTypeIDs, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), types)
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	output, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		tokenTypeIDs.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputIDs, attentionMask, tokenTypeIDs},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		tokenTypeIDs.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXEmbedder{
		session:       session,
		dimensions:    dimensions,
		maxTokens:     maxTokens,
		inputIDs:      inputIDs,
		attentionMask: attentionMask,
		tokenTypeIDs:  tokenTypeIDs,
		output:        output,
	}, nil
}

// Embed runs inference for text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids, mask, types := tokenize(text, e.maxTokens)
	copy(e.inputIDs.GetData(), ids)
	copy(e.attentionMask.GetData(), mask)
	copy(e.tokenTypeIDs.GetData(), types)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	vec := make([]float32, e.dimensions)
	copy(vec, e.output.GetData()[:e.dimensions])
	return vec, nil
}

// Dimensions returns the embedding dimensionality.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	for _, t := range []interface{ Destroy() error }{e.inputIDs, e.attentionMask, e.tokenTypeIDs, e.output} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	return nil
}
