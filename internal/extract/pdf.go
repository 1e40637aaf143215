package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// fromPDF concatenates the text of every page in document order, one page per
// line, and trims trailing whitespace.
func fromPDF(data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed inputs; surface those as
	// extraction errors like any other parse failure.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Format: "PDF", Err: fmt.Errorf("%v", r)}
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Format: "PDF", Err: err}
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", &ExtractionError{Format: "PDF", Err: err}
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), " \t\r\n"), nil
}
