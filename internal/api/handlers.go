package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pantheonai/enginuity/internal/answer"
	"github.com/pantheonai/enginuity/internal/feedback"
	"github.com/pantheonai/enginuity/internal/ingest"
	"github.com/pantheonai/enginuity/internal/retrieval"
	"github.com/pantheonai/enginuity/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// QueryRetriever abstracts semantic search for the API layer.
type QueryRetriever interface {
	Retrieve(ctx context.Context, query string, k int, metric retrieval.Metric) ([]retrieval.ScoredChunk, error)
}

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Store       *storage.Store
	Pipeline    *ingest.Pipeline
	Retriever   QueryRetriever
	Synthesizer *answer.Synthesizer
	Recorder    *feedback.Recorder
	Token       string
	TopK        int
	Metric      retrieval.Metric
}

// NewHandler returns the REST API handler.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/ingest", handleIngest(deps))
		r.Get("/search", handleSearch(deps))
		r.Post("/ask", handleAsk(deps))
		r.Post("/feedback", handleFeedback(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Delete("/documents/{id}", handleDeleteDocument(deps))
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type ingestRequest struct {
	Path    string `json:"path"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Title   string `json:"title"`
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var (
			res *ingest.FileResult
			err error
		)
		switch {
		case req.URL != "":
			res, err = deps.Pipeline.IngestURL(r.Context(), req.URL)
		case req.Path != "":
			res, err = deps.Pipeline.IngestFile(r.Context(), req.Path)
		case req.Content != "":
			source := req.Title
			if source == "" {
				source = "api:" + uuid.NewString()
			}
			res, err = deps.Pipeline.IngestText(r.Context(), req.Title, source, req.Content)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "one of path, url or content is required")
			return
		}
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "ingest_error", "ingestion failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"doc_id":        res.DocID,
			"title":         res.Title,
			"chunks_stored": res.ChunksStored,
			"chunks_dupes":  res.ChunksDupes,
			"chunks_failed": res.ChunksFailed,
		})
	}
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		k := parseIntParam(r, "k", deps.TopK, 50)

		metric := deps.Metric
		if m := r.URL.Query().Get("metric"); m != "" {
			parsed, err := retrieval.ParseMetric(m)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "metric: %v", err)
				return
			}
			metric = parsed
		}

		chunks, err := deps.Retriever.Retrieve(r.Context(), query, k, metric)
		if errors.Is(err, retrieval.ErrNoContext) {
			chunks = nil
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
			return
		}

		type searchResult struct {
			ChunkID  string  `json:"chunk_id"`
			DocID    string  `json:"doc_id"`
			Text     string  `json:"text"`
			Distance float64 `json:"distance"`
		}
		results := make([]searchResult, len(chunks))
		for i, c := range chunks {
			results[i] = searchResult{
				ChunkID:  c.ID,
				DocID:    c.DocID,
				Text:     c.Text,
				Distance: c.Distance,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}
		k := req.TopK
		if k <= 0 {
			k = deps.TopK
		}

		chunks, retrievalErr := deps.Retriever.Retrieve(r.Context(), req.Question, k, deps.Metric)
		result, err := deps.Synthesizer.Answer(r.Context(), req.Question, chunks, retrievalErr)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "answering failed: %v", err)
			return
		}

		feedbackID := ""
		if deps.Recorder != nil && !result.Refused {
			feedbackID = deps.Recorder.Record(req.Question, result.Answer, result.ModelTier, result.PromptTokens)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"answer":        result.Answer,
			"refused":       result.Refused,
			"model_tier":    result.ModelTier,
			"prompt_tokens": result.PromptTokens,
			"sources":       len(result.Sources),
			"feedback_id":   feedbackID,
		})
	}
}

type feedbackRequest struct {
	ID       string `json:"id"`
	Judgment string `json:"judgment"`
}

func handleFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.ID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "id is required")
			return
		}

		deps.Recorder.Judge(req.ID, feedback.ParseJudgment(req.Judgment))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "recorded"})
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		docs, err := deps.Store.ListDocuments(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []storage.Document{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(docs)
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.DeleteDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
