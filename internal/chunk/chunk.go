// Package chunk splits extracted text into bounded, overlapping pieces
// sized for embedding. Splitting prefers sentence and paragraph boundaries
// when one falls in the back half of the window.
package chunk

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunk is a contiguous piece of the source text. Start is the rune offset
// of Text within the original string.
type Chunk struct {
	Text  string
	Start int
}

// Split cuts text into chunks of at most size characters with the requested
// overlap between neighbours. Size and overlap count runes, not bytes, so a
// window edge never lands inside a multibyte sequence. Non-positive
// size/overlap fall back to the defaults; overlap is clamped below size.
// Whitespace-only windows are not emitted. The window start strictly
// increases on every iteration, so Split terminates for any input.
func Split(text string, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	n := len(runes)
	if n <= size {
		if lo, hi, ok := trim(runes, 0, n); ok {
			return []Chunk{{Text: string(runes[lo:hi]), Start: lo}}
		}
		return nil
	}

	var chunks []Chunk
	start := 0
	lastLo, lastHi := -1, -1
	for start < n {
		end := start + size
		if end > n {
			end = n
		}
		cut := end
		next := end
		if end < n {
			if b := lastBoundary(runes[start:end]); b >= 0 && b >= size/2 {
				cut = start + b + 1
				next = cut - overlap
			} else {
				next = end - overlap
			}
		}
		if next <= start {
			// A boundary close to the window start can drag the naive
			// advance backwards; force progress instead.
			next = start + 1
		}
		if lo, hi, ok := trim(runes, start, cut); ok {
			// At degenerate size/overlap trimming can collapse a window
			// into the previous chunk; emit only spans that move past it.
			if lo > lastLo && hi > lastHi {
				chunks = append(chunks, Chunk{Text: string(runes[lo:hi]), Start: lo})
				lastLo, lastHi = lo, hi
			}
		}
		start = next
	}
	return chunks
}

// lastBoundary returns the index of the right-most sentence end ('.', '!',
// '?') or paragraph break ("\n\n") in window, or -1.
func lastBoundary(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			return i
		case '\n':
			if i > 0 && window[i-1] == '\n' {
				return i - 1
			}
		}
	}
	return -1
}

// trim narrows [start,end) to its non-whitespace core and reports whether
// anything is left.
func trim(runes []rune, start, end int) (int, int, bool) {
	for start < end && isSpace(runes[start]) {
		start++
	}
	for end > start && isSpace(runes[end-1]) {
		end--
	}
	if start == end {
		return 0, 0, false
	}
	return start, end, true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
