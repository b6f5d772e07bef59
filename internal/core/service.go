// Package core wires the ingestion and retrieval pipelines into the
// operations the transports expose: ingest content into a collection, ask a
// grounded question, list collections, read or clear a transcript, and
// delete a collection. All business rules live here; the HTTP layer only
// translates requests and error kinds.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/b3ngr33n/docuchat-go/internal/convo"
	"github.com/b3ngr33n/docuchat-go/internal/journal"
	"github.com/b3ngr33n/docuchat-go/internal/logging"
	"github.com/b3ngr33n/docuchat-go/internal/rag"
	"github.com/b3ngr33n/docuchat-go/internal/source"
)

// DefaultTopK is the number of documents retrieved per question.
const DefaultTopK = 3

// Normalizer converts one content source into ordered segments.
type Normalizer interface {
	Normalize(ctx context.Context, src source.Source) ([]rag.Segment, error)
}

// Indexer embeds segments and stores them in a collection atomically.
type Indexer interface {
	Index(ctx context.Context, collection string, segments []rag.Segment) error
}

// Composer produces a grounded answer from retrieved documents and the
// prior transcript. It must not mutate the transcript.
type Composer interface {
	Compose(ctx context.Context, query string, docs []rag.Document, transcript []convo.Turn) (string, error)
}

// Service implements the application operations.
type Service struct {
	normalizer Normalizer
	indexer    Indexer
	retriever  rag.Retriever
	vectors    rag.VectorStore
	convo      *convo.Store
	composer   Composer
	// journal is optional; a nil journal disables ingestion auditing.
	journal journal.Journal
	topK    int
}

// Config holds the service dependencies. Journal may be nil.
type Config struct {
	Normalizer Normalizer
	Indexer    Indexer
	Retriever  rag.Retriever
	Vectors    rag.VectorStore
	Convo      *convo.Store
	Composer   Composer
	Journal    journal.Journal
	// TopK overrides the retrieval depth. Defaults to DefaultTopK.
	TopK int
}

// NewService validates the dependency set and constructs a Service.
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Normalizer == nil:
		return nil, fmt.Errorf("core: normalizer must not be nil")
	case cfg.Indexer == nil:
		return nil, fmt.Errorf("core: indexer must not be nil")
	case cfg.Retriever == nil:
		return nil, fmt.Errorf("core: retriever must not be nil")
	case cfg.Vectors == nil:
		return nil, fmt.Errorf("core: vector store must not be nil")
	case cfg.Convo == nil:
		return nil, fmt.Errorf("core: conversation store must not be nil")
	case cfg.Composer == nil:
		return nil, fmt.Errorf("core: composer must not be nil")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{
		normalizer: cfg.Normalizer,
		indexer:    cfg.Indexer,
		retriever:  cfg.Retriever,
		vectors:    cfg.Vectors,
		convo:      cfg.Convo,
		composer:   cfg.Composer,
		journal:    cfg.Journal,
		topK:       topK,
	}, nil
}

// IngestRequest describes one ingestion call. Any combination of the three
// payload fields may be set; an empty payload still registers the
// collection.
type IngestRequest struct {
	// Collection is the target collection name. Required.
	Collection string
	// Text is raw text to chunk and index. Optional.
	Text string
	// PDFPaths are local paths of uploaded PDF files. The files are
	// consumed: they are removed after extraction. Optional.
	PDFPaths []string
	// WebsiteURL is a page to crawl and index. Optional.
	WebsiteURL string
}

// IngestResult reports what one ingestion stored.
type IngestResult struct {
	// Collection is the target collection name.
	Collection string `json:"collection"`
	// Segments is the total number of segments indexed.
	Segments int `json:"segments"`
}

// ingestSource pairs a normalized source with its journal kind.
type ingestSource struct {
	kind string
	src  source.Source
}

// Ingest normalizes every supplied source, then indexes all resulting
// segments in one atomic batch. Normalization failures abort before
// anything is written. The collection is registered in the conversation
// store even when the payload is empty, so it appears in listings and can
// be queried (answering from nothing) immediately.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	log := logging.FromContext(ctx)

	if req.Collection == "" {
		return nil, Validationf("collection name is required")
	}

	var sources []ingestSource
	if req.Text != "" {
		sources = append(sources, ingestSource{kind: "text", src: source.Text{Content: req.Text}})
	}
	if len(req.PDFPaths) > 0 {
		sources = append(sources, ingestSource{kind: "pdf", src: source.PDFFiles{Paths: req.PDFPaths}})
	}
	if req.WebsiteURL != "" {
		sources = append(sources, ingestSource{kind: "web", src: source.Website{URL: req.WebsiteURL}})
	}

	// Normalize everything before writing anything: a bad PDF or an
	// unreachable site must not leave a half-indexed request behind.
	var (
		all       []rag.Segment
		perSource []int
	)
	for _, in := range sources {
		segs, err := s.normalizer.Normalize(ctx, in.src)
		if err != nil {
			var cerr *Error
			if errors.As(err, &cerr) {
				return nil, err
			}
			return nil, Upstreamf(err, "normalizing %s source failed", in.kind)
		}
		all = append(all, segs...)
		perSource = append(perSource, len(segs))
	}

	if len(all) > 0 {
		if err := s.indexer.Index(ctx, req.Collection, all); err != nil {
			return nil, Upstreamf(err, "indexing into %q failed", req.Collection)
		}
	}

	// Register the collection only after indexing succeeded (or there was
	// nothing to index) so a failed request leaves no trace.
	s.convo.Ensure(req.Collection)

	if s.journal != nil {
		for i, in := range sources {
			if err := s.journal.Record(ctx, req.Collection, in.kind, perSource[i]); err != nil {
				// The journal is advisory; the content is already indexed.
				log.Warn("journal record failed",
					"collection", req.Collection,
					"source_kind", in.kind,
					"error", err)
			}
		}
	}

	log.Info("ingestion complete",
		"collection", req.Collection,
		"sources", len(sources),
		"segments", len(all))

	return &IngestResult{Collection: req.Collection, Segments: len(all)}, nil
}

// Query retrieves the most relevant documents for the question, asks the
// model for a grounded answer, and commits the (question, answer) pair to
// the transcript. A failed completion leaves the transcript untouched.
func (s *Service) Query(ctx context.Context, collection, question string) (string, error) {
	log := logging.FromContext(ctx)

	if collection == "" {
		return "", Validationf("collection name is required")
	}
	if question == "" {
		return "", Validationf("question is required")
	}
	if !s.convo.Has(collection) {
		return "", NotFoundf("collection %q does not exist", collection)
	}

	docs, err := s.retriever.Retrieve(ctx, collection, question, s.topK)
	switch {
	case errors.Is(err, rag.ErrCollectionNotFound):
		// Registered but never indexed: answer from an empty context so the
		// model declines rather than the request failing.
		docs = nil
	case err != nil:
		return "", Upstreamf(err, "retrieval from %q failed", collection)
	}

	transcript, err := s.convo.Transcript(collection)
	if err != nil {
		// Has() passed above; a vanished entry means a concurrent delete.
		return "", NotFoundf("collection %q does not exist", collection)
	}

	answer, err := s.composer.Compose(ctx, question, docs, transcript)
	if err != nil {
		return "", Upstreamf(err, "completion for %q failed", collection)
	}

	s.convo.AppendPair(collection, question, answer)

	log.Debug("query answered",
		"collection", collection,
		"retrieved_docs", len(docs),
		"history_turns", len(transcript))

	return answer, nil
}

// Collections returns the names of all known collections, sorted.
func (s *Service) Collections(ctx context.Context) ([]string, error) {
	return s.convo.Names(), nil
}

// Transcript returns the ordered conversation transcript for the
// collection.
func (s *Service) Transcript(ctx context.Context, collection string) ([]convo.Turn, error) {
	if collection == "" {
		return nil, Validationf("collection name is required")
	}
	turns, err := s.convo.Transcript(collection)
	if err != nil {
		return nil, NotFoundf("collection %q does not exist", collection)
	}
	return turns, nil
}

// ClearTranscript resets the collection's transcript. Clearing an unknown
// collection registers it empty, matching ingest-then-clear semantics.
func (s *Service) ClearTranscript(ctx context.Context, collection string) error {
	if collection == "" {
		return Validationf("collection name is required")
	}
	s.convo.Clear(collection)
	return nil
}

// DeleteCollection removes the collection's vectors, then its transcript
// and journal entries. Vectors go first: if the vector delete fails the
// collection stays listed and the delete can be retried. A collection that
// was registered but never indexed has no vectors, which is treated as
// already deleted.
func (s *Service) DeleteCollection(ctx context.Context, collection string) error {
	log := logging.FromContext(ctx)

	if collection == "" {
		return Validationf("collection name is required")
	}
	if !s.convo.Has(collection) {
		return NotFoundf("collection %q does not exist", collection)
	}

	if err := s.vectors.DeleteCollection(ctx, collection); err != nil && !errors.Is(err, rag.ErrCollectionNotFound) {
		return Upstreamf(err, "deleting vectors of %q failed", collection)
	}

	s.convo.Remove(collection)

	if s.journal != nil {
		if err := s.journal.Forget(ctx, collection); err != nil {
			log.Warn("journal forget failed", "collection", collection, "error", err)
		}
	}

	log.Info("collection deleted", "collection", collection)
	return nil
}
