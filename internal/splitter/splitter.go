// Package splitter cuts extracted document text into overlapping,
// bounded-size segments for embedding.
package splitter

import (
	"fmt"
	"strings"
)

// DefaultSize is the default segment size in runes.
const DefaultSize = 700

// DefaultOverlap is the default number of runes shared between consecutive
// segments.
const DefaultOverlap = 100

// Splitter produces overlapping fixed-size segments. Splitting is
// deterministic: the same text and parameters always yield the same
// sequence.
type Splitter struct {
	size    int
	overlap int
}

// New validates the window parameters and returns a Splitter.
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split returns the ordered segments of text. Each segment is at most size
// runes; consecutive segments share exactly overlap runes, except the last
// segment which may be shorter. Removing the duplicated overlap from each
// segment after the first reconstructs the input exactly. Whitespace-only
// input yields no segments.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	step := s.size - s.overlap

	var segments []string
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end >= len(runes) {
			segments = append(segments, string(runes[start:]))
			break
		}
		segments = append(segments, string(runes[start:end]))
	}
	return segments
}

// Size returns the configured segment size in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the configured overlap in runes.
func (s *Splitter) Overlap() int { return s.overlap }
