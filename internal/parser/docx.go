package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// parseDOCX extracts paragraph text from word/document.xml inside the
// OOXML archive.
func parseDOCX(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", filepath.Base(path), err, ErrExtractionFailure)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%s: opening document.xml: %w", filepath.Base(path), ErrExtractionFailure)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%s: reading document.xml: %w", filepath.Base(path), ErrExtractionFailure)
		}

		text, err := parseDocumentXML(content)
		if err != nil {
			return "", fmt.Errorf("%s: %v: %w", filepath.Base(path), err, ErrExtractionFailure)
		}
		return text, nil
	}

	return "", fmt.Errorf("%s: missing word/document.xml: %w", filepath.Base(path), ErrExtractionFailure)
}

// documentXML mirrors the parts of word/document.xml we care about.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML joins paragraph runs with newlines, matching the
// paragraph-oriented extraction the format calls for.
func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", err
	}

	var sb strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			sb.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				sb.WriteString(text.Content)
			}
		}
	}
	return sb.String(), nil
}
