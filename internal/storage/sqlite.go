package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dimensionKey = "embedding_dim"

// Store wraps a SQLite database with methods for documents and feedback.
// Chunk rows live in the same database; vector operations on them are
// provided by the retrieval package on top of DB().
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used
// by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "enginuity.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	// Document deletion cascades to chunks.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for the retrieval layer.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// EnsureDimension pins the embedding dimension of the store. The first call
// on a fresh database records dim; later calls fail with ErrDimensionMismatch
// if dim differs from the recorded value. Must be called at startup before
// any chunk is written.
func (s *Store) EnsureDimension(dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}

	var stored string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", dimensionKey).Scan(&stored)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec("INSERT INTO store_meta (key, value) VALUES (?, ?)", dimensionKey, strconv.Itoa(dim))
		if err != nil {
			return fmt.Errorf("recording embedding dimension: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading embedding dimension: %w", err)
	}

	got, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("parsing stored embedding dimension %q: %w", stored, err)
	}
	if got != dim {
		return fmt.Errorf("store initialized with dimension %d, configured %d: %w", got, dim, ErrDimensionMismatch)
	}
	return nil
}

// Dimension returns the embedding dimension the store was initialized with,
// or ErrNotFound on a fresh database.
func (s *Store) Dimension() (int, error) {
	var stored string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", dimensionKey).Scan(&stored)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(stored)
}

// --- Documents ---

func (s *Store) SaveDocument(d Document) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (id, title, filename, created_at)
		VALUES (?, ?, ?, ?)`,
		d.ID, d.Title, d.Filename, createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetDocument(id string) (Document, error) {
	var d Document
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, title, filename, created_at FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Title, &d.Filename, &createdAt)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing created_at: %w", err)
	}
	d.CreatedAt = t
	return d, nil
}

func (s *Store) ListDocuments(limit int) ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, title, filename, created_at
		FROM documents ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var d Document
		var createdAt string
		if err := rows.Scan(&d.ID, &d.Title, &d.Filename, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		d.CreatedAt = t
		results = append(results, d)
	}
	return results, rows.Err()
}

// DeleteDocument removes a document and, via the foreign key cascade, all
// of its chunks.
func (s *Store) DeleteDocument(id string) error {
	res, err := s.db.Exec("DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CountDocuments() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

// --- Feedback ---

// SaveFeedback appends one answered query. Callers treat failures as
// best-effort: a logging problem never fails the query/answer exchange.
func (s *Store) SaveFeedback(f Feedback) error {
	judgment := f.UserFeedback
	if judgment == "" {
		judgment = "none"
	}
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO feedback (id, query_text, answer_text, user_feedback, prompt_tokens, model_tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.QueryText, f.AnswerText, judgment, f.PromptTokens, f.ModelTier,
		createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

// UpdateFeedbackJudgment records the user's verdict on an earlier answer.
func (s *Store) UpdateFeedbackJudgment(id, judgment string) error {
	res, err := s.db.Exec(`UPDATE feedback SET user_feedback = ? WHERE id = ?`, judgment, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListFeedback(limit int) ([]Feedback, error) {
	rows, err := s.db.Query(`
		SELECT id, query_text, answer_text, user_feedback, prompt_tokens, model_tier, created_at
		FROM feedback ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Feedback
	for rows.Next() {
		var f Feedback
		var createdAt string
		if err := rows.Scan(&f.ID, &f.QueryText, &f.AnswerText, &f.UserFeedback, &f.PromptTokens, &f.ModelTier, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		f.CreatedAt = t
		results = append(results, f)
	}
	return results, rows.Err()
}

func (s *Store) CountFeedback() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM feedback").Scan(&count)
	return count, err
}
