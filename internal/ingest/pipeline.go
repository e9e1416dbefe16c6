// Package ingest drives documents through the parse, split, embed and
// persist stages. Failures are isolated at two levels: one bad file never
// aborts a batch, and one failed chunk never discards its siblings.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pantheonai/enginuity/internal/parser"
	"github.com/pantheonai/enginuity/internal/retrieval"
	"github.com/pantheonai/enginuity/internal/splitter"
	"github.com/pantheonai/enginuity/internal/storage"
	"github.com/pantheonai/enginuity/internal/tokenizer"
)

const (
	defaultEmbedWorkers = 4
	defaultFileWorkers  = 2

	// DefaultMinTokens drops segments too short to carry meaning.
	DefaultMinTokens = 5

	fetchTimeout  = 30 * time.Second
	maxFetchBytes = 10 << 20
)

// Embedder is the slice of the embedding client the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FileResult summarizes one ingested document.
type FileResult struct {
	DocID         string
	Title         string
	Source        string
	ChunksStored  int
	ChunksDupes   int
	ChunksFailed  int
	ChunksSkipped int
}

// BatchResult aggregates a directory ingestion.
type BatchResult struct {
	Files       []FileResult
	FilesFailed []FileError
}

// FileError pairs a failed source with its cause.
type FileError struct {
	Source string
	Err    error
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	store        *storage.Store
	chunks       *retrieval.SQLiteStore
	embedder     Embedder
	split        *splitter.Splitter
	logger       *slog.Logger
	embedWorkers int
	fileWorkers  int
	httpClient   *http.Client

	// MinTokens filters out segments whose estimated token count is below
	// the threshold. Zero disables the filter.
	MinTokens int
}

// New creates a Pipeline. A nil splitter uses the default chunking
// parameters.
func New(store *storage.Store, chunks *retrieval.SQLiteStore, embedder Embedder, split *splitter.Splitter, logger *slog.Logger) *Pipeline {
	if split == nil {
		split, _ = splitter.New(splitter.DefaultSize, splitter.DefaultOverlap)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:        store,
		chunks:       chunks,
		embedder:     embedder,
		split:        split,
		logger:       logger,
		embedWorkers: defaultEmbedWorkers,
		fileWorkers:  defaultFileWorkers,
		httpClient:   &http.Client{Timeout: fetchTimeout},
		MinTokens:    DefaultMinTokens,
	}
}

// IngestFile parses, splits, embeds and persists one file.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*FileResult, error) {
	text, err := parser.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	title := parser.Title(text, filepath.Base(path))
	return p.ingestText(ctx, title, filepath.Base(path), text)
}

// IngestURL fetches a page, strips its markup and ingests the visible text.
func (p *Pipeline) IngestURL(ctx context.Context, url string) (*FileResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating fetch request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	text, err := parser.ExtractHTML(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", url, err)
	}
	title := parser.Title(text, url)
	return p.ingestText(ctx, title, url, text)
}

// IngestText ingests raw text that did not come from a file, e.g. inline
// API submissions. An empty title falls back to the text's first line.
func (p *Pipeline) IngestText(ctx context.Context, title, source, text string) (*FileResult, error) {
	if title == "" {
		title = parser.Title(text, source)
	}
	return p.ingestText(ctx, title, source, text)
}

// IngestDir ingests every supported file under dir, a bounded number of
// files at a time. Per-file failures are collected, not fatal.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (*BatchResult, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && parser.Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	batch := &BatchResult{}
	results := make([]*FileResult, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fileWorkers)
	for i, path := range paths {
		g.Go(func() error {
			res, err := p.IngestFile(gctx, path)
			if err != nil {
				p.logger.Warn("file ingestion failed", "path", path, "error", err)
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range paths {
		if errs[i] != nil {
			batch.FilesFailed = append(batch.FilesFailed, FileError{Source: paths[i], Err: errs[i]})
			continue
		}
		batch.Files = append(batch.Files, *results[i])
	}
	return batch, nil
}

// ingestText runs the split/dedup/embed/persist stages over extracted text.
//
// Chunk ids within a document stay dense even when embedding fails for some
// chunks: sequence numbers are assigned at persist time, to survivors only,
// in original document order.
func (p *Pipeline) ingestText(ctx context.Context, title, source, text string) (*FileResult, error) {
	segments := p.split.Split(text)
	if len(segments) == 0 {
		return nil, fmt.Errorf("ingesting %s: no extractable text", source)
	}

	res := &FileResult{Title: title, Source: source}

	// Dedup before embedding so known content costs no embedding calls.
	// The hash index is only a pre-filter; the unique constraint on the
	// stored hash is what actually guarantees at-most-once storage.
	type pending struct {
		text string
		hash string
		vec  []float32
		err  error
	}
	var work []*pending
	for _, seg := range segments {
		if tokenizer.Estimate(seg) < p.MinTokens {
			res.ChunksSkipped++
			continue
		}
		hash := contentHash(seg)
		seen, err := p.chunks.HasHash(hash)
		if err != nil {
			return nil, fmt.Errorf("checking hash: %w", err)
		}
		if seen {
			res.ChunksDupes++
			continue
		}
		work = append(work, &pending{text: seg, hash: hash})
	}
	if len(work) == 0 {
		p.logger.Info("nothing new to ingest", "source", source,
			"dupes", res.ChunksDupes, "skipped", res.ChunksSkipped)
		return res, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.embedWorkers)
	for _, w := range work {
		g.Go(func() error {
			w.vec, w.err = p.embedder.Embed(gctx, w.text)
			if w.err != nil {
				p.logger.Warn("embedding chunk failed", "source", source, "error", w.err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	if err := p.store.SaveDocument(storage.Document{
		ID:       docID,
		Title:    title,
		Filename: source,
	}); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	res.DocID = docID

	seq := 0
	for _, w := range work {
		if w.err != nil {
			res.ChunksFailed++
			continue
		}
		stored, err := p.chunks.InsertChunk(retrieval.Chunk{
			ID:          uuid.NewString(),
			DocID:       docID,
			Seq:         seq,
			Text:        w.text,
			ContentHash: w.hash,
			Embedding:   w.vec,
			TokenCount:  tokenizer.Estimate(w.text),
		})
		if err != nil {
			return nil, fmt.Errorf("storing chunk: %w", err)
		}
		if !stored {
			res.ChunksDupes++
			continue
		}
		res.ChunksStored++
		seq++
	}

	p.logger.Info("document ingested",
		"source", source,
		"doc_id", docID,
		"stored", res.ChunksStored,
		"dupes", res.ChunksDupes,
		"failed", res.ChunksFailed)
	return res, nil
}

// contentHash digests trimmed text so windows shifted only by surrounding
// whitespace dedup to the same chunk.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
