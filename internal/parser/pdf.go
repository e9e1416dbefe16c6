package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// parsePDF extracts text page by page, joining pages with newlines. Pages
// whose text cannot be decoded are skipped; a document where every page
// fails is an extraction failure.
func parsePDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", filepath.Base(path), err, ErrExtractionFailure)
	}
	defer f.Close()

	total := r.NumPage()
	if total == 0 {
		return "", fmt.Errorf("%s: no pages: %w", filepath.Base(path), ErrExtractionFailure)
	}

	var sb strings.Builder
	extracted := 0
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
		extracted++
	}

	if extracted == 0 {
		return "", fmt.Errorf("%s: no extractable pages: %w", filepath.Base(path), ErrExtractionFailure)
	}
	return sb.String(), nil
}
