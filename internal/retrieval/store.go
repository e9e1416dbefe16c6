package retrieval

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pantheonai/enginuity/internal/storage"
)

// Chunk is one stored text segment with its embedding.
type Chunk struct {
	ID          string
	DocID       string
	Seq         int
	Text        string
	ContentHash string
	Embedding   []float32
	TokenCount  int
	CreatedAt   time.Time
}

// ScoredChunk is a Chunk with its distance to the query vector.
type ScoredChunk struct {
	Chunk
	Distance float64
}

// SQLiteStore provides chunk persistence and brute-force nearest-neighbor
// search backed by SQLite. The chunks table carries a UNIQUE constraint on
// content_hash; that constraint, not the application-level pre-check, is
// the authority on content deduplication.
type SQLiteStore struct {
	db  *sql.DB
	dim int
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations. dim is the
// store's embedding dimension; every insert is validated against it.
func NewSQLiteStore(db *sql.DB, dim int) *SQLiteStore {
	return &SQLiteStore{db: db, dim: dim}
}

// InsertChunk persists one chunk. Inserting a chunk whose content_hash is
// already present is a no-op and reports stored=false; racing ingesters both
// hit the same UNIQUE index, so exactly one wins.
func (s *SQLiteStore) InsertChunk(c Chunk) (stored bool, err error) {
	if len(c.Embedding) != s.dim {
		return false, fmt.Errorf("chunk %s has embedding dimension %d, store expects %d: %w",
			c.ID, len(c.Embedding), s.dim, storage.ErrDimensionMismatch)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.Exec(`
		INSERT INTO chunks (id, doc_id, seq, chunk_text, content_hash, embedding, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING`,
		c.ID, c.DocID, c.Seq, c.Text, c.ContentHash, encodeFloat32s(c.Embedding),
		c.TokenCount, createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("inserting chunk %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// HasHash reports whether a chunk with the given content hash is already
// stored. Advisory only: it lets ingestion skip the embedding call for known
// content, while the UNIQUE index remains the correctness guarantee.
func (s *SQLiteStore) HasHash(hash string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM chunks WHERE content_hash = ? LIMIT 1", hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// candidate holds the scan-phase fields needed for ranking and tie-breaks.
type candidate struct {
	ID       string
	DocID    string
	Seq      int
	Distance float64
}

// worseThan orders candidates for the top-K heap: larger distance first,
// ties broken by seq then doc_id descending so the stable winner survives.
func (c candidate) worseThan(o candidate) bool {
	if c.Distance != o.Distance {
		return c.Distance > o.Distance
	}
	if c.Seq != o.Seq {
		return c.Seq > o.Seq
	}
	return c.DocID > o.DocID
}

// SearchNearest returns the k chunks closest to vector under metric, ordered
// by ascending distance with ties broken by seq then doc_id. An empty store
// yields an empty result, not an error.
func (s *SQLiteStore) SearchNearest(vector []float32, k int, metric Metric) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query vector dimension %d, store expects %d: %w",
			len(vector), s.dim, storage.ErrDimensionMismatch)
	}

	// Phase 1: scan id + ranking fields + embedding to find top-K candidates.
	rows, err := s.db.Query(`SELECT id, doc_id, seq, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	h := &candidateHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var c candidate
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocID, &c.Seq, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", c.ID, err)
		}
		if len(buf) != len(vector) {
			return nil, fmt.Errorf("stored embedding for %s has dimension %d, query has %d",
				c.ID, len(buf), len(vector))
		}

		c.Distance = distance(metric, vector, buf)
		if h.Len() < k {
			heap.Push(h, c)
		} else if (*h)[0].worseThan(c) {
			(*h)[0] = c
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full records only for the top-K IDs.
	ranked := make(map[string]float64, h.Len())
	ids := make([]string, 0, h.Len())
	for h.Len() > 0 {
		c := heap.Pop(h).(candidate)
		ranked[c.ID] = c.Distance
		ids = append(ids, c.ID)
	}

	queryArgs := make([]any, len(ids))
	for i, id := range ids {
		queryArgs[i] = id
	}
	fullQuery := `SELECT id, doc_id, seq, chunk_text, content_hash, embedding, token_count, created_at
		FROM chunks WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	fullRows, err := s.db.Query(fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K chunks: %w", err)
	}
	defer fullRows.Close()

	var results []ScoredChunk
	for fullRows.Next() {
		c, err := scanChunk(fullRows)
		if err != nil {
			return nil, err
		}
		results = append(results, ScoredChunk{Chunk: c, Distance: ranked[c.ID]})
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full chunks: %w", err)
	}

	// The IN query does not preserve rank order.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		if results[i].Seq != results[j].Seq {
			return results[i].Seq < results[j].Seq
		}
		return results[i].DocID < results[j].DocID
	})

	return results, nil
}

// ChunksByDoc returns a document's chunks in sequence order.
func (s *SQLiteStore) ChunksByDoc(docID string) ([]Chunk, error) {
	rows, err := s.db.Query(`
		SELECT id, doc_id, seq, chunk_text, content_hash, embedding, token_count, created_at
		FROM chunks WHERE doc_id = ? ORDER BY seq ASC`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks for doc %s: %w", docID, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CountChunks returns the number of stored chunks.
func (s *SQLiteStore) CountChunks() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}

func scanChunk(rows *sql.Rows) (Chunk, error) {
	var c Chunk
	var blob []byte
	var createdAt string
	if err := rows.Scan(&c.ID, &c.DocID, &c.Seq, &c.Text, &c.ContentHash, &blob, &c.TokenCount, &createdAt); err != nil {
		return Chunk{}, fmt.Errorf("scanning chunk: %w", err)
	}
	embedding, err := decodeFloat32s(blob)
	if err != nil {
		return Chunk{}, fmt.Errorf("decoding embedding for %s: %w", c.ID, err)
	}
	c.Embedding = embedding
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Chunk{}, fmt.Errorf("parsing created_at for %s: %w", c.ID, err)
	}
	c.CreatedAt = t
	return c, nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
// Returns an error if the byte slice length is not a multiple of 4 (indicates data corruption).
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// candidateHeap keeps the current worst candidate at the root so the scan
// can evict it in O(log k).
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[i].worseThan(h[j]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
