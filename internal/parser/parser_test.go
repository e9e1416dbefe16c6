package parser

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse("report.xlsx")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestParse_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("line one\nline two\n"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	text, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if text != "line one\nline two\n" {
		t.Errorf("text = %q", text)
	}
}

// writeTestDOCX builds a minimal OOXML archive with the given paragraphs.
func writeTestDOCX(t *testing.T, path string, paragraphs []string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating docx: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	entry, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("creating document.xml: %v", err)
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?><document><body>`)
	for _, p := range paragraphs {
		sb.WriteString(`<p><r><t>` + p + `</t></r></p>`)
	}
	sb.WriteString(`</body></document>`)
	if _, err := entry.Write([]byte(sb.String())); err != nil {
		t.Fatalf("writing document.xml: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
}

func TestParse_DOCX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.docx")
	writeTestDOCX(t, path, []string{"First paragraph.", "Second paragraph."})

	text, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if text != "First paragraph.\nSecond paragraph." {
		t.Errorf("text = %q", text)
	}
}

func TestParse_DOCXCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	if err := os.WriteFile(path, []byte("not a zip archive"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	_, err := Parse(path)
	if !errors.Is(err, ErrExtractionFailure) {
		t.Fatalf("err = %v, want ErrExtractionFailure", err)
	}
}

func TestParse_DOCXMissingDocumentXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.docx")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating docx: %v", err)
	}
	w := zip.NewWriter(f)
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	f.Close()

	_, err = Parse(path)
	if !errors.Is(err, ErrExtractionFailure) {
		t.Fatalf("err = %v, want ErrExtractionFailure", err)
	}
}

func TestParse_PDFCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(path, []byte("%PDF-but-not-really"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	_, err := Parse(path)
	if !errors.Is(err, ErrExtractionFailure) {
		t.Fatalf("err = %v, want ErrExtractionFailure", err)
	}
}

func TestExtractHTML(t *testing.T) {
	src := `<html><head><style>body {color: red}</style><script>alert(1)</script></head>
		<body><h1>Heading</h1><p>Body text.</p></body></html>`

	text, err := ExtractHTML(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if !strings.Contains(text, "Heading") || !strings.Contains(text, "Body text.") {
		t.Errorf("text = %q, want heading and body", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "color") {
		t.Errorf("text = %q, script/style content leaked", text)
	}
}

func TestSupported(t *testing.T) {
	for _, path := range []string{"a.pdf", "b.docx", "c.txt", "d.md", "e.html", "F.PDF"} {
		if !Supported(path) {
			t.Errorf("Supported(%q) = false", path)
		}
	}
	for _, path := range []string{"a.xlsx", "b.png", "noext"} {
		if Supported(path) {
			t.Errorf("Supported(%q) = true", path)
		}
	}
}

func TestTitle(t *testing.T) {
	cases := []struct {
		text     string
		fallback string
		want     string
	}{
		{"\n\n  Pump Manual  \nrest", "doc.pdf", "Pump Manual"},
		{"", "doc.pdf", "doc.pdf"},
		{"   \n \t\n", "doc.pdf", "doc.pdf"},
	}
	for _, tc := range cases {
		if got := Title(tc.text, tc.fallback); got != tc.want {
			t.Errorf("Title(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
