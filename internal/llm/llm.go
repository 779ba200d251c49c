// Package llm provides the generation model client.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the generation service failed or timed out.
// The caller must surface a degraded message, never fabricate an answer.
var ErrUnavailable = errors.New("generation unavailable")

// Generator produces free text from a prompt. Any instruction-following text
// model can sit behind this interface.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
