// Package answer assembles grounded answers from retrieved chunks.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/opsmind-ai/opsmind/internal/llm"
	"github.com/opsmind-ai/opsmind/internal/models"
)

// UnknownAnswer is the canonical reply when no supporting evidence exists or
// the model admits it does not know. Citations are shown if and only if the
// final answer is not this message.
const UnknownAnswer = "I don't know. No relevant information found."

// contextSeparator joins retrieved chunk texts inside the prompt.
const contextSeparator = "\n---\n"

// Retriever is the slice of the retriever the synthesizer needs.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]*models.RetrievedChunk, error)
}

// Synthesizer builds a grounded prompt from retrieved chunks and delegates to
// the generation model.
type Synthesizer struct {
	retriever  Retriever
	generator  llm.Generator
	topK       int
	previewLen int
	logger     *zap.Logger
}

// New creates a synthesizer. topK <= 0 defaults to 3; previewLen bounds the
// citation text preview.
func New(retriever Retriever, generator llm.Generator, topK, previewLen int, logger *zap.Logger) *Synthesizer {
	if topK <= 0 {
		topK = 3
	}
	if previewLen <= 0 {
		previewLen = 160
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		retriever:  retriever,
		generator:  generator,
		topK:       topK,
		previewLen: previewLen,
		logger:     logger,
	}
}

// Answer retrieves evidence for question and generates a grounded answer.
//
// With no evidence it returns the canonical unknown answer without invoking
// the generator at all. A generator failure surfaces as llm.ErrUnavailable;
// no answer is fabricated.
func (s *Synthesizer) Answer(ctx context.Context, question string) (*models.Answer, error) {
	return s.AnswerK(ctx, question, 0)
}

// AnswerK is Answer with a per-call retrieval depth. k <= 0 uses the
// configured default.
func (s *Synthesizer) AnswerK(ctx context.Context, question string, k int) (*models.Answer, error) {
	if k <= 0 {
		k = s.topK
	}
	retrieved, err := s.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve evidence: %w", err)
	}
	if len(retrieved) == 0 {
		s.logger.Debug("no evidence retrieved", zap.String("question", question))
		return &models.Answer{Text: UnknownAnswer, Citations: []models.Citation{}}, nil
	}

	prompt := buildPrompt(question, retrieved)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if isUnknown(text) {
		// An answer that admits ignorance must not cite sources.
		return &models.Answer{Text: UnknownAnswer, Citations: []models.Citation{}}, nil
	}

	citations := make([]models.Citation, len(retrieved))
	for i, r := range retrieved {
		citations[i] = models.CitationFor(r.Chunk, s.previewLen)
	}
	return &models.Answer{Text: text, Citations: citations}, nil
}

// buildPrompt embeds the retrieved chunk texts and the verbatim question into
// an instruction that confines the model to the supplied context.
func buildPrompt(question string, retrieved []*models.RetrievedChunk) string {
	texts := make([]string, len(retrieved))
	for i, r := range retrieved {
		texts[i] = r.Chunk.Text
	}
	contextBlock := strings.Join(texts, contextSeparator)

	var b strings.Builder
	b.WriteString("You are OpsMind, a corporate knowledge assistant.\n")
	b.WriteString("Answer the user's question using only the context below.\n")
	b.WriteString("If the answer is not in the context, say \"I don't know.\"\n\n")
	b.WriteString("Context:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:\n")
	return b.String()
}

// isUnknown reports whether the model output admits non-knowledge. Matching
// is substring-based on a small phrase set; curly apostrophes are normalized
// first so "don’t know" matches too.
func isUnknown(text string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	for _, phrase := range []string{"don't know", "do not know"} {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}
