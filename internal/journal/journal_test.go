package journal

import (
	"context"
	"testing"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func Test_Journal_RecordAndStats(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	ctx := context.Background()

	if err := j.Record(ctx, "docs", "text", 5); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(ctx, "docs", "pdf", 12); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(ctx, "other", "web", 3); err != nil {
		t.Fatalf("record: %v", err)
	}

	stats, err := j.Stats(ctx, "docs")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats == nil {
		t.Fatal("want stats for docs, got nil")
	}
	if stats.Ingestions != 2 || stats.Segments != 17 {
		t.Errorf("want 2 ingestions / 17 segments, got %d / %d", stats.Ingestions, stats.Segments)
	}
	if stats.LastIngestedAt.IsZero() {
		t.Error("want non-zero LastIngestedAt")
	}
}

func Test_Journal_StatsUnknownCollection(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	stats, err := j.Stats(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats != nil {
		t.Errorf("want nil stats for unknown collection, got %+v", stats)
	}
}

func Test_Journal_Forget(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	ctx := context.Background()

	if err := j.Record(ctx, "docs", "text", 5); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Forget(ctx, "docs"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	stats, err := j.Stats(ctx, "docs")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats != nil {
		t.Errorf("want nil stats after forget, got %+v", stats)
	}

	// Forgetting again is a no-op.
	if err := j.Forget(ctx, "docs"); err != nil {
		t.Errorf("repeat forget: %v", err)
	}
}

func Test_Journal_RejectsUnknownSourceKind(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	if err := j.Record(context.Background(), "docs", "carrier-pigeon", 1); err == nil {
		t.Error("want constraint error for unknown source kind")
	}
}
