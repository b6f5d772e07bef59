// Package chunker splits raw text into bounded, overlapping segments for
// embedding. Splitting is deterministic: identical input and parameters
// always produce identical chunks, so ingestion is reproducible at the
// chunk level (the index level intentionally is not — see the indexer).
package chunker

import "strings"

const (
	// DefaultTextSize is the chunk size for direct text submissions.
	DefaultTextSize = 500
	// DefaultTextOverlap is the overlap for direct text submissions.
	DefaultTextOverlap = 30

	// DefaultWebSize is the chunk size applied to crawled web page text.
	// Deliberately larger than the text-path tuning: web pages arrive as
	// long converted documents and benefit from wider context windows.
	DefaultWebSize = 1000
	// DefaultWebOverlap is the overlap applied to crawled web page text.
	DefaultWebOverlap = 100
)

// Chunker splits text into overlapping rune windows of a fixed size.
type Chunker struct {
	// size is the maximum number of runes per chunk.
	size int

	// overlap is the number of runes shared between consecutive chunks.
	// Always strictly less than size.
	overlap int
}

// New constructs a Chunker with the given chunk size and overlap (both in
// runes). Non-positive sizes fall back to DefaultTextSize; an overlap that
// is negative or >= size is clamped to size/10.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultTextSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the configured chunk size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Split divides text into ordered chunks of at most size runes, where each
// chunk after the first begins with the last overlap runes of its
// predecessor. Leading and trailing whitespace is trimmed from the input
// first; an empty (or all-whitespace) input yields no chunks. Stripping the
// first overlap runes from every chunk but the first and concatenating
// reconstructs the trimmed input exactly.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}
