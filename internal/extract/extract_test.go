package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestExtractUnsupportedType(t *testing.T) {
	_, err := Extract([]byte("x"), "image/png", "x.png")
	var unsupported *UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want UnsupportedTypeError", err)
	}
	if unsupported.MediaType != "image/png" {
		t.Errorf("media type = %q", unsupported.MediaType)
	}
}

func TestExtractMediaTypeNormalization(t *testing.T) {
	for _, mt := range []string{
		"TEXT/PLAIN",
		"text/plain; charset=utf-8",
		"  text/plain  ",
		"text/markdown",
		"application/json",
	} {
		out, err := Extract([]byte("hello"), mt, "a.txt")
		if err != nil {
			t.Errorf("Extract(%q): %v", mt, err)
			continue
		}
		if out != "hello" {
			t.Errorf("Extract(%q) = %q", mt, out)
		}
	}
}

func TestExtractTextEncodingFallback(t *testing.T) {
	// 0xE9 is é in Latin-1 but invalid as standalone UTF-8.
	data := []byte{'c', 'a', 'f', 0xE9}
	out, err := Extract(data, "text/plain", "menu.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out != "café" {
		t.Errorf("out = %q, want café", out)
	}
}

func TestExtractTextUTF8Passthrough(t *testing.T) {
	in := "héllo wörld — ünïcode"
	out, err := Extract([]byte(in), "text/plain", "a.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out != in {
		t.Errorf("out = %q, want input unchanged", out)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	data := []byte("same bytes, same text")
	first, err := Extract(data, "text/plain", "a.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, err := Extract(data, "text/plain", "a.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if first != second {
		t.Errorf("results differ: %q vs %q", first, second)
	}
}

// buildDocx assembles a minimal wordprocessing document in memory.
func buildDocx(t *testing.T, paragraphs []string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>`)
		body.WriteString(p)
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := f.Write([]byte(body.String())); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDocx(t *testing.T) {
	data := buildDocx(t, []string{"First paragraph.", "Second paragraph."})
	out, err := Extract(data, TypeDocx, "doc.docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(out, "First paragraph.") || !strings.Contains(out, "Second paragraph.") {
		t.Errorf("out = %q", out)
	}
	if !strings.Contains(out, "\n") {
		t.Errorf("paragraphs not separated: %q", out)
	}
}

func TestExtractDocxLegacyTypeAlias(t *testing.T) {
	data := buildDocx(t, []string{"Body text."})
	out, err := Extract(data, TypeDoc, "doc.doc")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(out, "Body text.") {
		t.Errorf("out = %q", out)
	}
}

func TestExtractMalformedDocx(t *testing.T) {
	_, err := Extract([]byte("not a zip archive"), TypeDocx, "bad.docx")
	var extraction *ExtractionError
	if !errors.As(err, &extraction) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
}

func TestExtractMalformedPDF(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4 garbage"), TypePDF, "bad.pdf")
	var extraction *ExtractionError
	if !errors.As(err, &extraction) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
}

func TestExtractHTMLFallsBackToRawText(t *testing.T) {
	// Too short for article extraction, should still come back as text.
	data := []byte("<html><body><p>tiny</p></body></html>")
	out, err := Extract(data, "text/html", "page.html")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(out, "tiny") {
		t.Errorf("out = %q", out)
	}
}
