// Package answer turns a question plus retrieved context into a grounded
// answer. Prompt assembly is deterministic so the same question over the
// same context always produces the same model request.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pantheonai/enginuity/internal/generation"
	"github.com/pantheonai/enginuity/internal/retrieval"
	"github.com/pantheonai/enginuity/internal/tiers"
	"github.com/pantheonai/enginuity/internal/tokenizer"
)

const systemPrompt = "You are an engineering and systems analyst. " +
	"Use the provided context to answer the question precisely and concisely."

// RefusalText is returned when retrieval produced no context. The model is
// never called in that case so it cannot hallucinate an unsupported answer.
const RefusalText = "I don't have enough ingested material to answer that. " +
	"Try ingesting relevant documents first."

// Generator produces a completion from chat messages.
type Generator interface {
	Generate(ctx context.Context, model string, messages []generation.Message) (string, error)
}

// Result is a synthesized answer with its provenance.
type Result struct {
	Answer       string
	ModelTier    string
	PromptTokens int
	Sources      []retrieval.ScoredChunk
	Refused      bool
}

// Synthesizer assembles grounded prompts and routes them to a model tier.
type Synthesizer struct {
	generator Generator
	table     *tiers.Table
	logger    *slog.Logger
}

// NewSynthesizer wires a Synthesizer. A nil table falls back to the stock
// tier table.
func NewSynthesizer(g Generator, table *tiers.Table, logger *slog.Logger) *Synthesizer {
	if table == nil {
		table = tiers.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{generator: g, table: table, logger: logger}
}

// Answer retrieves nothing itself; callers pass the chunks a retriever
// found. An ErrNoContext from retrieval maps to a local refusal, never a
// model call.
func (s *Synthesizer) Answer(ctx context.Context, question string, chunks []retrieval.ScoredChunk, retrievalErr error) (*Result, error) {
	if retrievalErr != nil {
		if errors.Is(retrievalErr, retrieval.ErrNoContext) {
			s.logger.Info("no context for question, refusing", "question_len", len(question))
			return &Result{Answer: RefusalText, Refused: true}, nil
		}
		return nil, fmt.Errorf("retrieving context: %w", retrievalErr)
	}
	if len(chunks) == 0 {
		return &Result{Answer: RefusalText, Refused: true}, nil
	}

	prompt := buildPrompt(question, chunks)
	tokens := tokenizer.Estimate(systemPrompt) + tokenizer.Estimate(prompt)
	tier := s.table.Select(tokens)

	s.logger.Debug("synthesizing answer",
		"chunks", len(chunks),
		"prompt_tokens", tokens,
		"model_tier", tier)

	text, err := s.generator.Generate(ctx, tier, []generation.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Result{
		Answer:       text,
		ModelTier:    tier,
		PromptTokens: tokens,
		Sources:      chunks,
	}, nil
}

// buildPrompt concatenates the retrieved chunks in ranked order, then the
// question. Chunk order is part of the contract: retrieval already sorted
// them and the prompt must preserve that.
func buildPrompt(question string, chunks []retrieval.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(c.Text))
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
