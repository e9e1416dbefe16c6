package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func completionHandler(answer string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": answer}},
			},
		})
	}
}

func TestGenerate(t *testing.T) {
	var gotModel string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		completionHandler("the answer")(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key")
	text, err := c.Generate(context.Background(), "gpt-4o-mini", []Message{
		{Role: "system", Content: "prompt"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "the answer" {
		t.Errorf("text = %q", text)
	}
	if gotModel != "gpt-4o-mini" {
		t.Errorf("model = %q", gotModel)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("auth = %q", gotAuth)
	}
}

func TestGenerate_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		completionHandler("ok")(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	text, err := c.Generate(context.Background(), "m", []Message{{Role: "user", Content: "q"}})
	if err != nil {
		t.Fatalf("Generate after retry: %v", err)
	}
	if text != "ok" {
		t.Errorf("text = %q", text)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestGenerate_PermanentFailureSurfaced(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad")
	if _, err := c.Generate(context.Background(), "m", nil); err == nil {
		t.Fatal("Generate succeeded, want error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
