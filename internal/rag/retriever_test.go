package rag

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	lastTexts []string
	vectors   [][]float32
	err       error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.lastTexts = texts
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

type stubStore struct {
	lastCollection string
	lastEmbedding  []float32
	lastTopK       int
	docs           []Document
	searchErr      error
}

func (s *stubStore) Upsert(context.Context, string, []Document, [][]float32) error { return nil }

func (s *stubStore) Search(_ context.Context, collection string, embedding []float32, topK int) ([]Document, error) {
	s.lastCollection = collection
	s.lastEmbedding = embedding
	s.lastTopK = topK
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.docs, nil
}

func (s *stubStore) DeleteCollection(context.Context, string) error { return nil }

func (s *stubStore) CollectionExists(context.Context, string) (bool, error) { return true, nil }

func (s *stubStore) Close() error { return nil }

func TestRetrieve_EmbedsQueryAndSearches(t *testing.T) {
	t.Parallel()

	emb := &stubEmbedder{vectors: [][]float32{{0.5, 0.5}}}
	store := &stubStore{docs: []Document{{ID: "a", Text: "hit", Score: 0.9}}}
	r, err := NewRetriever(emb, store, 3)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	docs, err := r.Retrieve(context.Background(), "manuals", "warranty period", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if len(emb.lastTexts) != 1 || emb.lastTexts[0] != "warranty period" {
		t.Errorf("embedded texts = %v, want the query alone", emb.lastTexts)
	}
	if store.lastCollection != "manuals" {
		t.Errorf("collection = %q, want %q", store.lastCollection, "manuals")
	}
	if store.lastTopK != 5 {
		t.Errorf("topK = %d, want 5", store.lastTopK)
	}
	if len(docs) != 1 || docs[0].Text != "hit" {
		t.Errorf("docs = %+v, want the single stored hit", docs)
	}
}

func TestRetrieve_ZeroTopKUsesDefault(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	r, _ := NewRetriever(&stubEmbedder{vectors: [][]float32{{1}}}, store, 7)

	if _, err := r.Retrieve(context.Background(), "c", "q", 0); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if store.lastTopK != 7 {
		t.Errorf("topK = %d, want configured default 7", store.lastTopK)
	}
}

func TestRetrieve_EmbedderFailure(t *testing.T) {
	t.Parallel()

	embErr := errors.New("backend down")
	r, _ := NewRetriever(&stubEmbedder{err: embErr}, &stubStore{}, 3)

	if _, err := r.Retrieve(context.Background(), "c", "q", 3); !errors.Is(err, embErr) {
		t.Fatalf("error = %v, want wrapped %v", err, embErr)
	}
}

func TestRetrieve_EmptyEmbeddingResult(t *testing.T) {
	t.Parallel()

	r, _ := NewRetriever(&stubEmbedder{vectors: nil}, &stubStore{}, 3)

	if _, err := r.Retrieve(context.Background(), "c", "q", 3); err == nil {
		t.Fatal("expected error for empty embedding result")
	}
}

func TestRetrieve_CollectionNotFoundPassesThrough(t *testing.T) {
	t.Parallel()

	store := &stubStore{searchErr: ErrCollectionNotFound}
	r, _ := NewRetriever(&stubEmbedder{vectors: [][]float32{{1}}}, store, 3)

	_, err := r.Retrieve(context.Background(), "ghost", "q", 3)
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("error = %v, want ErrCollectionNotFound", err)
	}
}

func TestNewRetriever_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &stubStore{}, 3); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&stubEmbedder{}, nil, 3); err == nil {
		t.Error("expected error for nil store")
	}
}
