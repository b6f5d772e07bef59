// Package rag defines the interfaces for the retrieval side of docuchat:
// vector storage, similarity retrieval, and embedding. Concrete
// implementations (Qdrant, etc.) satisfy these interfaces so the core
// service never depends on a specific backend.
package rag

import (
	"context"
	"errors"
)

// ErrCollectionNotFound is returned by VectorStore operations that target a
// collection which does not exist. Callers must distinguish this from an
// empty result on an existing collection.
var ErrCollectionNotFound = errors.New("rag: collection not found")

// Segment is a bounded unit of normalized text plus metadata — the unit of
// embedding and retrieval. Segments are immutable once created.
type Segment struct {
	// Text is the normalized text content.
	Text string

	// Metadata holds source attribution (source type, file name, page
	// number, chunk index, …).
	Metadata map[string]string
}

// Document is a stored or retrieved segment with its identity and, after
// retrieval, its similarity score.
type Document struct {
	// ID is the unique identifier of this stored segment.
	ID string

	// Text is the segment text.
	Text string

	// Metadata holds the segment's original metadata.
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval
	// (cosine, higher is closer). Zero when not retrieved.
	Score float32
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines, and the
// same Embedder configuration must be used for indexing and querying a
// given collection.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists and searches document embeddings across named
// collections. Implementations must be safe to call from multiple
// goroutines.
type VectorStore interface {
	// Upsert stores a batch of documents with their pre-computed embeddings
	// into the named collection, creating the collection if it does not
	// exist. embeddings[i] is the vector for docs[i]. The upsert is atomic:
	// either all documents are stored or none are.
	Upsert(ctx context.Context, collection string, docs []Document, embeddings [][]float32) error

	// Search returns the top-k most similar documents for the query
	// embedding, closest first. Returns ErrCollectionNotFound when the
	// collection does not exist.
	Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error)

	// DeleteCollection removes the collection and all its vectors.
	// Returns ErrCollectionNotFound when the collection does not exist.
	DeleteCollection(ctx context.Context, collection string) error

	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}

// Retriever fetches the most relevant stored segments for a query against a
// named collection. Implementations must be safe to call from multiple
// goroutines.
type Retriever interface {
	// Retrieve embeds the query and returns the top-k closest documents.
	// Returns ErrCollectionNotFound when the collection does not exist.
	Retrieve(ctx context.Context, collection, query string, topK int) ([]Document, error)
}
