package feedback

import (
	"testing"

	"github.com/pantheonai/enginuity/internal/storage"
)

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestParseJudgment(t *testing.T) {
	cases := map[string]string{
		"yes":      JudgmentPositive,
		"Y":        JudgmentPositive,
		"no":       JudgmentNegative,
		" N ":      JudgmentNegative,
		"skip":     JudgmentNone,
		"":         JudgmentNone,
		"whatever": JudgmentNone,
	}
	for in, want := range cases {
		if got := ParseJudgment(in); got != want {
			t.Errorf("ParseJudgment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecordAndJudge(t *testing.T) {
	store := testStore(t)
	r := NewRecorder(store, nil)

	id := r.Record("why?", "because", "gpt-4o-mini", 123)
	if id == "" {
		t.Fatal("Record returned empty id")
	}

	r.Judge(id, JudgmentPositive)

	rows, err := store.ListFeedback(10)
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	f := rows[0]
	if f.QueryText != "why?" || f.AnswerText != "because" {
		t.Errorf("row = %+v", f)
	}
	if f.UserFeedback != JudgmentPositive {
		t.Errorf("judgment = %q", f.UserFeedback)
	}
	if f.ModelTier != "gpt-4o-mini" || f.PromptTokens != 123 {
		t.Errorf("provenance = %q/%d", f.ModelTier, f.PromptTokens)
	}
}

func TestRecord_FailureIsSwallowed(t *testing.T) {
	store := testStore(t)
	store.Close()

	r := NewRecorder(store, nil)
	if id := r.Record("q", "a", "tier", 1); id != "" {
		t.Errorf("Record on closed store returned id %q", id)
	}
	// Must not panic or propagate.
	r.Judge("missing", JudgmentNegative)
}

func TestJudge_NoneIsNoop(t *testing.T) {
	store := testStore(t)
	r := NewRecorder(store, nil)

	id := r.Record("q", "a", "tier", 1)
	r.Judge(id, JudgmentNone)

	rows, err := store.ListFeedback(10)
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if rows[0].UserFeedback != JudgmentNone {
		t.Errorf("judgment = %q, want none", rows[0].UserFeedback)
	}
}
