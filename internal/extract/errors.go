package extract

import "fmt"

// UnsupportedTypeError is returned when the declared media type is not in the
// recognised set. It is a caller error and never worth retrying.
type UnsupportedTypeError struct {
	MediaType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.MediaType)
}

// ExtractionError wraps a parse failure for a recognised media type.
// Retrying the same bytes cannot succeed.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DecodeError is returned when every fallback text encoding failed. Latin-1
// accepts any byte sequence, so in practice this path is unreachable; it is
// kept so the decoder chain stays explicit.
type DecodeError struct{}

func (e *DecodeError) Error() string {
	return "could not decode text file with any common encoding"
}
