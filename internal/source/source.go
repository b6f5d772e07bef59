// Package source normalizes heterogeneous ingestion inputs — raw text, PDF
// files, and crawled web pages — into ordered [rag.Segment] sequences with
// source metadata. Each input kind is a Source variant; a single Normalizer
// dispatches on the variant so the indexer stays source-agnostic.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/b3ngr33n/docuchat-go/internal/chunker"
	"github.com/b3ngr33n/docuchat-go/internal/rag"
)

// Metadata keys attached to normalized segments.
const (
	// MetaSourceType identifies the normalizer that produced a segment:
	// "text", "pdf", or "web".
	MetaSourceType = "source_type"

	// MetaSource is the origin of the segment: a file basename for PDFs,
	// a page URL for web content. Absent for direct text submissions.
	MetaSource = "source"

	// MetaPage is the 1-based page number of a PDF segment.
	MetaPage = "page"

	// MetaTotalPages is the page count of the PDF a segment came from.
	MetaTotalPages = "total_pages"

	// MetaChunkIndex is the 0-based position of a chunk within its source.
	MetaChunkIndex = "chunk_index"
)

// Source is a tagged ingestion input. Exactly one concrete variant exists
// per supported input kind.
type Source interface {
	// Kind returns the stable label of the input variant.
	Kind() string
}

// Text is a direct raw-text submission.
type Text struct {
	// Content is the submitted text.
	Content string
}

// Kind implements Source.
func (Text) Kind() string { return "text" }

// PDFFiles is a set of transient PDF file paths. The files are deleted by
// the normalizer on every exit path, success or failure.
type PDFFiles struct {
	// Paths are the filesystem paths of the uploaded files.
	Paths []string
}

// Kind implements Source.
func (PDFFiles) Kind() string { return "pdf" }

// Website is a root URL to crawl.
type Website struct {
	// URL is the root page to fetch.
	URL string
}

// Kind implements Source.
func (Website) Kind() string { return "web" }

// Config holds the normalization policy. The text and web paths use
// distinct chunking parameters on purpose: direct text is tuned tightly
// (500/30) while crawled pages use the wider web defaults.
type Config struct {
	// TextChunker splits direct text submissions. Defaults to
	// chunker.New(chunker.DefaultTextSize, chunker.DefaultTextOverlap).
	TextChunker *chunker.Chunker

	// WebChunker splits converted web page text. Defaults to
	// chunker.New(chunker.DefaultWebSize, chunker.DefaultWebOverlap).
	WebChunker *chunker.Chunker

	// MaxDepth is the crawl recursion depth. Depth 1 fetches only the root
	// page; links found there are depth 2 and not followed. Defaults to 1.
	MaxDepth int

	// FetchTimeout bounds each page fetch. Defaults to 30s.
	FetchTimeout time.Duration

	// WrapWidth is the fixed word-wrap width applied to converted page
	// text. Defaults to 130 columns.
	WrapWidth int

	// UserAgent is the HTTP User-Agent sent by the crawler.
	UserAgent string
}

// Normalizer converts any Source variant into ordered segments.
type Normalizer struct {
	// cfg holds the resolved normalization policy.
	cfg *Config
}

// NewNormalizer constructs a Normalizer, filling config defaults.
func NewNormalizer(cfg *Config) *Normalizer {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.TextChunker == nil {
		cfg.TextChunker = chunker.New(chunker.DefaultTextSize, chunker.DefaultTextOverlap)
	}
	if cfg.WebChunker == nil {
		cfg.WebChunker = chunker.New(chunker.DefaultWebSize, chunker.DefaultWebOverlap)
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 1
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.WrapWidth <= 0 {
		cfg.WrapWidth = 130
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "docuchat-go/1.0 (content ingestion)"
	}
	return &Normalizer{cfg: cfg}
}

// Normalize produces the ordered segments for the given source. Any failure
// aborts the whole normalization — partial results are never returned, so a
// failed source never half-commits an ingestion.
func (n *Normalizer) Normalize(ctx context.Context, src Source) ([]rag.Segment, error) {
	switch s := src.(type) {
	case Text:
		return n.normalizeText(s)
	case PDFFiles:
		return n.normalizePDFs(ctx, s)
	case Website:
		return n.normalizeWebsite(ctx, s)
	default:
		return nil, fmt.Errorf("source: unsupported source kind %q", src.Kind())
	}
}
