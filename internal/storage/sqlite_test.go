package storage

import (
	"errors"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDocumentRoundtrip(t *testing.T) {
	s := testStore(t)

	doc := Document{ID: "d1", Title: "Design notes", Filename: "notes.pdf"}
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument("d1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Title != "Design notes" || got.Filename != "notes.pdf" {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	if _, err := s.GetDocument("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument(missing) = %v, want ErrNotFound", err)
	}
}

func TestListDocuments_NewestFirst(t *testing.T) {
	s := testStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		err := s.SaveDocument(Document{
			ID:        id,
			Title:     id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveDocument(%s): %v", id, err)
		}
	}

	docs, err := s.ListDocuments(10)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs", len(docs))
	}
	if docs[0].ID != "c" || docs[2].ID != "a" {
		t.Errorf("order = %s,%s,%s, want c,b,a", docs[0].ID, docs[1].ID, docs[2].ID)
	}
}

func TestDeleteDocument_CascadesToChunks(t *testing.T) {
	s := testStore(t)

	if err := s.SaveDocument(Document{ID: "d1", Title: "t"}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	_, err := s.DB().Exec(`
		INSERT INTO chunks (id, doc_id, seq, chunk_text, content_hash, embedding, token_count, created_at)
		VALUES ('c1', 'd1', 0, 'text', 'hash1', X'00000000', 1, '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("inserting chunk: %v", err)
	}

	if err := s.DeleteDocument("d1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		t.Fatalf("counting chunks: %v", err)
	}
	if count != 0 {
		t.Errorf("chunks remaining after cascade: %d", count)
	}

	if err := s.DeleteDocument("d1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestEnsureDimension(t *testing.T) {
	s := testStore(t)

	if _, err := s.Dimension(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Dimension on fresh store = %v, want ErrNotFound", err)
	}

	if err := s.EnsureDimension(768); err != nil {
		t.Fatalf("first EnsureDimension: %v", err)
	}
	if err := s.EnsureDimension(768); err != nil {
		t.Fatalf("repeat EnsureDimension: %v", err)
	}

	err := s.EnsureDimension(1024)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("EnsureDimension(1024) = %v, want ErrDimensionMismatch", err)
	}

	dim, err := s.Dimension()
	if err != nil {
		t.Fatalf("Dimension: %v", err)
	}
	if dim != 768 {
		t.Errorf("dim = %d, want 768", dim)
	}

	if err := s.EnsureDimension(0); err == nil {
		t.Error("EnsureDimension(0) accepted")
	}
}

func TestFeedback(t *testing.T) {
	s := testStore(t)

	err := s.SaveFeedback(Feedback{
		ID:           "f1",
		QueryText:    "how?",
		AnswerText:   "like this",
		PromptTokens: 42,
		ModelTier:    "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("SaveFeedback: %v", err)
	}

	rows, err := s.ListFeedback(10)
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].UserFeedback != "none" {
		t.Errorf("default judgment = %q, want none", rows[0].UserFeedback)
	}

	if err := s.UpdateFeedbackJudgment("f1", "positive"); err != nil {
		t.Fatalf("UpdateFeedbackJudgment: %v", err)
	}
	rows, _ = s.ListFeedback(10)
	if rows[0].UserFeedback != "positive" {
		t.Errorf("judgment = %q", rows[0].UserFeedback)
	}

	if err := s.UpdateFeedbackJudgment("missing", "negative"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}

	n, err := s.CountFeedback()
	if err != nil || n != 1 {
		t.Errorf("CountFeedback = %d, %v", n, err)
	}
}
