package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/b3ngr33n/docuchat-go/internal/rag"
)

type fakeEmbedder struct {
	lastTexts []string
	err       error
	// short counts how many fewer embeddings to return than requested.
	short int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.lastTexts = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts)-f.short; i++ {
		out = append(out, []float32{0.1, 0.2, 0.3})
	}
	return out, nil
}

type fakeStore struct {
	lastCollection string
	lastDocs       []rag.Document
	lastEmbeddings [][]float32
	upsertErr      error
	upserts        int
}

func (f *fakeStore) Upsert(_ context.Context, collection string, docs []rag.Document, embeddings [][]float32) error {
	f.upserts++
	f.lastCollection = collection
	f.lastDocs = docs
	f.lastEmbeddings = embeddings
	return f.upsertErr
}

func (f *fakeStore) Search(context.Context, string, []float32, int) ([]rag.Document, error) {
	return nil, nil
}

func (f *fakeStore) DeleteCollection(context.Context, string) error { return nil }

func (f *fakeStore) CollectionExists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeStore) Close() error { return nil }

func segs(texts ...string) []rag.Segment {
	out := make([]rag.Segment, 0, len(texts))
	for _, t := range texts {
		out = append(out, rag.Segment{Text: t, Metadata: map[string]string{"source_type": "text"}})
	}
	return out
}

func TestIndex_EmbedsAndUpsertsInOneBatch(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	store := &fakeStore{}
	ix, err := NewIndexer(emb, store)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}

	if err := ix.Index(context.Background(), "notes", segs("one", "two", "three")); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if got := len(emb.lastTexts); got != 3 {
		t.Fatalf("embedded %d texts, want 3", got)
	}
	if store.upserts != 1 {
		t.Fatalf("upserts = %d, want 1", store.upserts)
	}
	if store.lastCollection != "notes" {
		t.Errorf("collection = %q, want %q", store.lastCollection, "notes")
	}
	if len(store.lastDocs) != 3 || len(store.lastEmbeddings) != 3 {
		t.Fatalf("upserted %d docs / %d embeddings, want 3 / 3", len(store.lastDocs), len(store.lastEmbeddings))
	}
	if store.lastDocs[1].Text != "two" {
		t.Errorf("doc order not preserved: docs[1].Text = %q", store.lastDocs[1].Text)
	}
	if store.lastDocs[0].Metadata["source_type"] != "text" {
		t.Errorf("segment metadata not carried onto document")
	}
}

func TestIndex_FreshIDsPerCall(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	ix, _ := NewIndexer(&fakeEmbedder{}, store)

	if err := ix.Index(context.Background(), "notes", segs("same content")); err != nil {
		t.Fatalf("first Index: %v", err)
	}
	first := store.lastDocs[0].ID

	if err := ix.Index(context.Background(), "notes", segs("same content")); err != nil {
		t.Fatalf("second Index: %v", err)
	}
	second := store.lastDocs[0].ID

	if first == "" || second == "" {
		t.Fatalf("empty document ID")
	}
	if first == second {
		t.Errorf("identical content got the same ID across calls; IDs must be fresh")
	}
}

func TestIndex_EmptySegmentsIsNoOp(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	ix, _ := NewIndexer(&fakeEmbedder{}, store)

	if err := ix.Index(context.Background(), "notes", nil); err != nil {
		t.Fatalf("Index with no segments: %v", err)
	}
	if store.upserts != 0 {
		t.Errorf("upserts = %d, want 0", store.upserts)
	}
}

func TestIndex_EmptyCollectionName(t *testing.T) {
	t.Parallel()

	ix, _ := NewIndexer(&fakeEmbedder{}, &fakeStore{})
	if err := ix.Index(context.Background(), "", segs("x")); err == nil {
		t.Fatal("expected error for empty collection name")
	}
}

func TestIndex_EmbedFailureWritesNothing(t *testing.T) {
	t.Parallel()

	embErr := errors.New("backend down")
	store := &fakeStore{}
	ix, _ := NewIndexer(&fakeEmbedder{err: embErr}, store)

	err := ix.Index(context.Background(), "notes", segs("x"))
	if !errors.Is(err, embErr) {
		t.Fatalf("error = %v, want wrapped %v", err, embErr)
	}
	if store.upserts != 0 {
		t.Errorf("upserted despite embed failure")
	}
}

func TestIndex_EmbeddingCountMismatch(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	ix, _ := NewIndexer(&fakeEmbedder{short: 1}, store)

	err := ix.Index(context.Background(), "notes", segs("a", "b"))
	if err == nil || !strings.Contains(err.Error(), "expected 2 embeddings") {
		t.Fatalf("error = %v, want embedding count mismatch", err)
	}
	if store.upserts != 0 {
		t.Errorf("upserted despite mismatched embedding count")
	}
}

func TestIndex_UpsertFailurePropagates(t *testing.T) {
	t.Parallel()

	upErr := errors.New("qdrant unavailable")
	ix, _ := NewIndexer(&fakeEmbedder{}, &fakeStore{upsertErr: upErr})

	if err := ix.Index(context.Background(), "notes", segs("x")); !errors.Is(err, upErr) {
		t.Fatalf("error = %v, want wrapped %v", err, upErr)
	}
}

func TestNewIndexer_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewIndexer(nil, &fakeStore{}); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewIndexer(&fakeEmbedder{}, nil); err == nil {
		t.Error("expected error for nil store")
	}
}
