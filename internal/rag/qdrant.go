package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance. Unlike a
// single-collection setup, collections are addressed per call: the first
// Upsert into a new name creates the collection with the dimensionality of
// the supplied embeddings.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client
}

// NewQdrantStore creates a QdrantStore connected to the configured instance.
// Collections are created lazily on first upsert, so no collection name is
// required at construction time.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// ensureCollection creates the named collection if it does not already
// exist, sized for vectors of the given dimensionality.
func (s *QdrantStore) ensureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", collection, err)
	}

	return nil
}

// Upsert stores a batch of documents with their pre-computed embeddings into
// the named collection, creating it if absent. Point IDs come from the
// documents, so identical content ingested twice is stored twice — the store
// never deduplicates.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	if err := s.ensureCollection(ctx, collection, uint64(len(embeddings[0]))); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		payload := map[string]any{
			"text": doc.Text,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert into %q failed: %w", collection, err)
	}

	return nil
}

// Search performs a cosine similarity search against the named collection
// and returns the top-k results, closest first.
func (s *QdrantStore) Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("qdrant: search in %q: %w", collection, ErrCollectionNotFound)
	}

	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search in %q failed: %w", collection, err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := Document{
			ID:       r.Id.GetUuid(),
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		if p := r.Payload; p != nil {
			if v, ok := p["text"]; ok {
				doc.Text = v.GetStringValue()
			}
			for k, v := range p {
				if k != "text" {
					doc.Metadata[k] = v.GetStringValue()
				}
			}
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// DeleteCollection removes the named collection and all its vectors.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("qdrant: delete %q: %w", collection, ErrCollectionNotFound)
	}

	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("qdrant: delete collection %q failed: %w", collection, err)
	}

	return nil
}

// ListCollections returns the names of all collections on the instance.
// Used by the CLI, which has no in-process registry to consult.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("qdrant: list collections failed: %w", err)
	}
	return names, nil
}

// CollectionExists reports whether the named collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	return exists, nil
}

// Client exposes the underlying gRPC client for health probing.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
