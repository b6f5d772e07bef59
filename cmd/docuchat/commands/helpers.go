package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/b3ngr33n/docuchat-go/internal/answer"
	"github.com/b3ngr33n/docuchat-go/internal/chat"
	"github.com/b3ngr33n/docuchat-go/internal/chunker"
	"github.com/b3ngr33n/docuchat-go/internal/embedder"
	"github.com/b3ngr33n/docuchat-go/internal/journal"
	"github.com/b3ngr33n/docuchat-go/internal/rag"
	"github.com/b3ngr33n/docuchat-go/internal/source"
)

// buildQdrantStore connects to the Qdrant instance described by the
// QDRANT_* environment variables.
func buildQdrantStore(log *slog.Logger) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	store, err := rag.NewQdrantStore(&rag.QdrantConfig{
		Host:   host,
		Port:   port,
		APIKey: os.Getenv("QDRANT_API_KEY"),
		UseTLS: os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	log.Info("qdrant store ready", slog.String("host", host), slog.Int("port", port))
	return store, nil
}

// buildEmbedder validates and constructs the embedding backend from the
// environment.
func buildEmbedder(log *slog.Logger) (rag.Embedder, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))))
	return emb, nil
}

// buildNormalizer constructs the source normalizer from the CRAWLER_* and
// CHUNK_* environment variables, falling back to the package defaults.
func buildNormalizer() *source.Normalizer {
	return source.NewNormalizer(&source.Config{
		TextChunker: chunker.New(
			getEnvInt("CHUNK_TEXT_SIZE", chunker.DefaultTextSize),
			getEnvInt("CHUNK_TEXT_OVERLAP", chunker.DefaultTextOverlap),
		),
		WebChunker: chunker.New(
			getEnvInt("CHUNK_WEB_SIZE", chunker.DefaultWebSize),
			getEnvInt("CHUNK_WEB_OVERLAP", chunker.DefaultWebOverlap),
		),
		MaxDepth:     getEnvInt("CRAWLER_MAX_DEPTH", 1),
		FetchTimeout: time.Duration(getEnvInt("CRAWLER_FETCH_TIMEOUT", 30)) * time.Second,
		WrapWidth:    getEnvInt("CRAWLER_WRAP_WIDTH", 130),
		UserAgent:    os.Getenv("CRAWLER_USER_AGENT"),
	})
}

// buildComposer constructs the chat model and answer composer from the
// environment.
func buildComposer(ctx context.Context, log *slog.Logger) (*answer.Composer, error) {
	providerCfg := chat.ProviderFromEnv()
	model, err := chat.NewModel(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("model provider initialised", slog.String("provider", string(providerCfg.Backend)))

	composer, err := answer.NewComposer(model, answer.Config{})
	if err != nil {
		return nil, err
	}
	return composer, nil
}

// buildJournal opens the ingestion journal. DOCUCHAT_JOURNAL_DB overrides
// the default path (~/.docuchat/journal.db); "disabled" turns it off.
// Journal failures are downgraded to warnings — the journal is advisory.
func buildJournal(log *slog.Logger) (journal.Journal, func()) {
	dbPath := os.Getenv("DOCUCHAT_JOURNAL_DB")
	if dbPath == "disabled" {
		log.Info("journal: disabled via DOCUCHAT_JOURNAL_DB=disabled")
		return nil, func() {}
	}
	if dbPath == "" {
		var err error
		dbPath, err = journal.DefaultDBPath()
		if err != nil {
			log.Warn("journal: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
	}

	j, err := journal.Open(dbPath)
	if err != nil {
		log.Warn("journal: failed to open, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("journal: opened", slog.String("path", dbPath))
	return j, func() { _ = j.Close() }
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
