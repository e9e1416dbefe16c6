package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDimensionMismatch is returned when the configured embedding dimension
// disagrees with the dimension the store was initialized with. The store
// dimension is fixed the first time a database is opened and never changes.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Document groups the chunks extracted from one ingested file.
type Document struct {
	ID        string
	Title     string
	Filename  string
	CreatedAt time.Time
}

// Feedback is one answered query, optionally annotated with the user's
// judgment ("positive", "negative" or "none").
type Feedback struct {
	ID           string
	QueryText    string
	AnswerText   string
	UserFeedback string
	PromptTokens int
	ModelTier    string
	CreatedAt    time.Time
}
