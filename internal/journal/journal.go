// Package journal provides a SQLite-backed ingestion journal. Every
// successful ingestion records what went into which collection — source
// kind, segment count, timestamp — so an operator can audit how a
// collection was built even though the vectors themselves are opaque.
// The journal is advisory: ingestion succeeds whether or not the journal
// write lands.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is one recorded ingestion.
type Entry struct {
	// Collection is the target collection name.
	Collection string
	// SourceKind is the ingestion source ("text", "pdf", "web").
	SourceKind string
	// Segments is the number of segments the ingestion produced.
	Segments int
	// CreatedAt is when the ingestion was recorded.
	CreatedAt time.Time
}

// Stats aggregates the journal for one collection.
type Stats struct {
	// Collection is the collection name.
	Collection string
	// Ingestions is the number of recorded ingestion requests.
	Ingestions int
	// Segments is the total segment count across those ingestions.
	Segments int
	// LastIngestedAt is the timestamp of the most recent ingestion.
	LastIngestedAt time.Time
}

// Journal records and aggregates ingestions. Implementations must be safe
// for concurrent use.
type Journal interface {
	// Record persists one ingestion entry.
	Record(ctx context.Context, collection, sourceKind string, segments int) error
	// Stats returns the per-collection aggregate, or nil if the collection
	// has no recorded ingestions.
	Stats(ctx context.Context, collection string) (*Stats, error)
	// Forget removes all entries for the collection.
	Forget(ctx context.Context, collection string) error
	// Close releases any resources held by the journal.
	Close() error
}

// SQLiteJournal is a Journal backed by a local SQLite database.
type SQLiteJournal struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the ingestion journal database.
// It resolves to ~/.docuchat/journal.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("journal: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docuchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("journal: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "journal.db"), nil
}

// Open opens (or creates) a SQLiteJournal at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteJournal, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// migrate creates the schema if it does not already exist.
func (j *SQLiteJournal) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS ingestions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    collection   TEXT    NOT NULL,
    source_kind  TEXT    NOT NULL CHECK(source_kind IN ('text','pdf','web')),
    segments     INTEGER NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_ingestions_collection_created
    ON ingestions (collection, created_at);
`
	if _, err := j.db.Exec(ddl); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

// Record persists one ingestion entry.
func (j *SQLiteJournal) Record(ctx context.Context, collection, sourceKind string, segments int) error {
	const q = `INSERT INTO ingestions (collection, source_kind, segments, created_at) VALUES (?, ?, ?, ?)`
	if _, err := j.db.ExecContext(ctx, q, collection, sourceKind, segments, time.Now().Unix()); err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Stats returns the per-collection aggregate, or nil when the collection
// has no recorded ingestions.
func (j *SQLiteJournal) Stats(ctx context.Context, collection string) (*Stats, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(segments), 0), COALESCE(MAX(created_at), 0)
FROM   ingestions
WHERE  collection = ?`

	var (
		count, segments int
		last            int64
	)
	if err := j.db.QueryRowContext(ctx, q, collection).Scan(&count, &segments, &last); err != nil {
		return nil, fmt.Errorf("journal: stats: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	return &Stats{
		Collection:     collection,
		Ingestions:     count,
		Segments:       segments,
		LastIngestedAt: time.Unix(last, 0),
	}, nil
}

// Forget removes all entries for the collection. Forgetting an unknown
// collection is a no-op.
func (j *SQLiteJournal) Forget(ctx context.Context, collection string) error {
	const q = `DELETE FROM ingestions WHERE collection = ?`
	if _, err := j.db.ExecContext(ctx, q, collection); err != nil {
		return fmt.Errorf("journal: forget: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (j *SQLiteJournal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return nil
}
