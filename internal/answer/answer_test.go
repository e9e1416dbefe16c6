package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pantheonai/enginuity/internal/generation"
	"github.com/pantheonai/enginuity/internal/retrieval"
)

type fakeGenerator struct {
	gotModel    string
	gotMessages []generation.Message
	reply       string
	err         error
	calls       int
}

func (f *fakeGenerator) Generate(_ context.Context, model string, messages []generation.Message) (string, error) {
	f.calls++
	f.gotModel = model
	f.gotMessages = messages
	return f.reply, f.err
}

func scored(texts ...string) []retrieval.ScoredChunk {
	out := make([]retrieval.ScoredChunk, len(texts))
	for i, t := range texts {
		out[i].Text = t
		out[i].Distance = float64(i)
	}
	return out
}

func TestAnswer_GroundedPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: "42"}
	s := NewSynthesizer(gen, nil, nil)

	res, err := s.Answer(context.Background(), "what is the answer?", scored("first chunk", "second chunk"), nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Answer != "42" {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.Refused {
		t.Error("refused with context present")
	}
	if len(gen.gotMessages) != 2 {
		t.Fatalf("got %d messages, want 2", len(gen.gotMessages))
	}
	user := gen.gotMessages[1].Content
	if !strings.Contains(user, "first chunk") || !strings.Contains(user, "second chunk") {
		t.Errorf("prompt missing chunks: %q", user)
	}
	if strings.Index(user, "first chunk") > strings.Index(user, "second chunk") {
		t.Error("chunks out of ranked order in prompt")
	}
	if !strings.Contains(user, "Question: what is the answer?") {
		t.Errorf("prompt missing question: %q", user)
	}
	if res.PromptTokens <= 0 {
		t.Errorf("prompt tokens = %d", res.PromptTokens)
	}
	if res.ModelTier != gen.gotModel {
		t.Errorf("tier %q does not match requested model %q", res.ModelTier, gen.gotModel)
	}
}

func TestAnswer_Deterministic(t *testing.T) {
	gen := &fakeGenerator{reply: "a"}
	s := NewSynthesizer(gen, nil, nil)

	chunks := scored("alpha", "beta")
	s.Answer(context.Background(), "q", chunks, nil)
	first := gen.gotMessages
	s.Answer(context.Background(), "q", chunks, nil)
	if gen.gotMessages[1].Content != first[1].Content {
		t.Error("same inputs produced different prompts")
	}
}

func TestAnswer_NoContextRefusesLocally(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	s := NewSynthesizer(gen, nil, nil)

	res, err := s.Answer(context.Background(), "q", nil, retrieval.ErrNoContext)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !res.Refused {
		t.Error("expected refusal")
	}
	if res.Answer != RefusalText {
		t.Errorf("answer = %q", res.Answer)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}
}

func TestAnswer_EmptyChunksRefuses(t *testing.T) {
	gen := &fakeGenerator{}
	s := NewSynthesizer(gen, nil, nil)

	res, err := s.Answer(context.Background(), "q", nil, nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !res.Refused || gen.calls != 0 {
		t.Error("expected local refusal without a model call")
	}
}

func TestAnswer_GenerationErrorSurfaced(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	s := NewSynthesizer(gen, nil, nil)

	if _, err := s.Answer(context.Background(), "q", scored("ctx"), nil); err == nil {
		t.Fatal("Answer succeeded, want error")
	}
}

func TestAnswer_LargeContextSelectsHigherTier(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	s := NewSynthesizer(gen, nil, nil)

	small := scored("tiny")
	s.Answer(context.Background(), "q", small, nil)
	smallModel := gen.gotModel

	big := scored(strings.Repeat("x", 10000))
	s.Answer(context.Background(), "q", big, nil)
	if gen.gotModel == smallModel {
		t.Errorf("big prompt selected same tier %q as small prompt", gen.gotModel)
	}
}
