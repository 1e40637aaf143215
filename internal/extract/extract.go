package extract

import (
	"strings"
)

// Media types recognised by Extract. Matching is case-insensitive and any
// text/* subtype falls through to the plain-text decoder.
const (
	TypePDF  = "application/pdf"
	TypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeDoc  = "application/msword"
	TypeHTML = "text/html"
	TypeJSON = "application/json"
)

// Extract converts a document's raw bytes into plain text based on the
// declared media type. It is a pure function: the same bytes always produce
// the same text or the same error.
func Extract(data []byte, mediaType string, filename string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == TypePDF:
		return fromPDF(data)
	case mt == TypeDocx || mt == TypeDoc:
		return fromDocx(data)
	case mt == TypeHTML:
		return fromHTML(data, filename)
	case strings.HasPrefix(mt, "text/") || mt == TypeJSON:
		return fromText(data)
	default:
		return "", &UnsupportedTypeError{MediaType: mediaType}
	}
}
