// Package parser converts source files into plain text for chunking.
// Dispatch is by file extension; each format gets a thin adapter over its
// decoder. Parsing never writes anything.
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions no adapter handles.
// Permanent: callers must not retry.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrExtractionFailure is returned when a file's structure cannot be decoded
// (corrupt archive, encrypted content, malformed pages). Permanent: the file
// is skipped, not retried.
var ErrExtractionFailure = errors.New("text extraction failed")

// Parse reads the file at path and returns its plain text.
func Parse(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return parsePDF(path)
	case ".docx":
		return parseDOCX(path)
	case ".txt", ".md":
		return parsePlain(path)
	case ".html", ".htm":
		return parseHTMLFile(path)
	default:
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
}

// Supported reports whether Parse handles the file's extension. Folder
// ingestion uses it to pick files out of a directory tree.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".txt", ".md", ".html", ".htm":
		return true
	}
	return false
}

func parsePlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}

func parseHTMLFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	text, err := ExtractHTML(f)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", filepath.Base(path), err, ErrExtractionFailure)
	}
	return text, nil
}

// Title returns the first non-empty line of extracted text, or fallback when
// the text has none.
func Title(text, fallback string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
