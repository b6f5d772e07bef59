// Package ingest implements the indexing half of the pipeline: it takes the
// normalized segments of one ingestion request, embeds them in a single
// batch, and upserts them into the named collection with one atomic call —
// either every segment of the request is stored or none are.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/b3ngr33n/docuchat-go/internal/rag"
)

// Indexer embeds segments and stores them in a vector collection.
type Indexer struct {
	// embedder converts segment text into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded segments.
	store rag.VectorStore
}

// NewIndexer constructs an Indexer from the provided dependencies.
func NewIndexer(embedder rag.Embedder, store rag.VectorStore) (*Indexer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: store must not be nil")
	}
	return &Indexer{embedder: embedder, store: store}, nil
}

// Index embeds all segments in one batch and upserts them into collection,
// creating the collection if absent. An empty segment list is a successful
// no-op. Every document gets a fresh random ID, so re-ingesting identical
// content appends duplicate vectors — indexing is deliberately not
// idempotent, deduplication is out of scope.
func (ix *Indexer) Index(ctx context.Context, collection string, segments []rag.Segment) error {
	if collection == "" {
		return fmt.Errorf("ingest: collection name must not be empty")
	}
	if len(segments) == 0 {
		return nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	embeddings, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("ingest: embedding %d segments failed: %w", len(segments), err)
	}
	if len(embeddings) != len(segments) {
		return fmt.Errorf("ingest: expected %d embeddings, got %d", len(segments), len(embeddings))
	}

	docs := make([]rag.Document, 0, len(segments))
	for _, seg := range segments {
		docs = append(docs, rag.Document{
			ID:       uuid.NewString(),
			Text:     seg.Text,
			Metadata: seg.Metadata,
		})
	}

	if err := ix.store.Upsert(ctx, collection, docs, embeddings); err != nil {
		return fmt.Errorf("ingest: upsert of %d segments into %q failed: %w", len(docs), collection, err)
	}

	return nil
}
