package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// fromDocx reads word/document.xml out of the docx archive and concatenates
// paragraph text in document order, one paragraph per line.
func fromDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Format: "DOCX", Err: err}
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", &ExtractionError{Format: "DOCX", Err: errors.New("word/document.xml not found")}
	}

	rc, err := doc.Open()
	if err != nil {
		return "", &ExtractionError{Format: "DOCX", Err: err}
	}
	defer rc.Close()

	text, err := docxParagraphs(rc)
	if err != nil {
		return "", &ExtractionError{Format: "DOCX", Err: err}
	}
	return strings.TrimRight(text, " \t\r\n"), nil
}

// docxParagraphs walks the WordprocessingML token stream. Text lives in w:t
// elements; w:p boundaries become newlines and w:tab becomes a tab.
func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
