// Package embedding wraps the external embedding capability: an
// Ollama-compatible HTTP endpoint producing fixed-dimension vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pantheonai/enginuity/internal/storage"
)

const (
	requestTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond

	// batchConcurrency bounds parallel embed calls to avoid overwhelming
	// the embedding service.
	batchConcurrency = 4
)

// Client calls the embedding service over HTTP. The service is treated as
// slow and occasionally flaky: transient failures are retried with
// exponential backoff before being surfaced.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL and embedding model.
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{},
	}
}

// Model returns the configured embedding model identifier.
func (c *Client) Model() string { return c.model }

// embedRequest is the JSON body for POST /api/embed.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the JSON returned by POST /api/embed.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the unit-normalized embedding vector for text. Transient
// failures (network errors, 429, 5xx) are retried up to maxRetries with
// exponential backoff; other failures are permanent.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := range maxRetries {
		vec, err := c.embedOnce(ctx, text)
		if err == nil {
			normalize(vec)
			return vec, nil
		}
		if !isTransient(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("embedding service failed after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{fmt.Errorf("embed request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("embed: unexpected status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &transientError{err}
		}
		return nil, err
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed: empty embeddings array")
	}
	return result.Embeddings[0], nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently.
// Returns nil (not error) for empty input.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := c.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CheckDimension embeds a probe string and verifies the capability's output
// dimension against want. Run once at startup: a mismatch is a schema/model
// contract violation, fatal and never retried per call.
func (c *Client) CheckDimension(ctx context.Context, want int) error {
	vec, err := c.Embed(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("probing embedding dimension: %w", err)
	}
	if len(vec) != want {
		return fmt.Errorf("model %s produces %d-dimension vectors, store configured for %d: %w",
			c.model, len(vec), want, storage.ErrDimensionMismatch)
	}
	return nil
}

// normalize scales v to unit length in place. Zero vectors are left alone.
func normalize(v []float32) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}

// transientError marks failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	_, ok := err.(*transientError)
	return ok
}
