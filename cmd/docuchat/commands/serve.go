package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/b3ngr33n/docuchat-go/internal/convo"
	"github.com/b3ngr33n/docuchat-go/internal/core"
	"github.com/b3ngr33n/docuchat-go/internal/ingest"
	"github.com/b3ngr33n/docuchat-go/internal/logging"
	"github.com/b3ngr33n/docuchat-go/internal/rag"
	"github.com/b3ngr33n/docuchat-go/internal/server"
	"github.com/b3ngr33n/docuchat-go/internal/tracing"
)

// NewServeCmd constructs the `docuchat serve` command, which starts the HTTP
// API for ingestion and question answering.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docuchat HTTP server",
		Long: `Start the docuchat HTTP server on localhost.

The server exposes a REST API for ingesting text, PDF files, and websites
into named collections, and for asking questions answered from the stored
content. Conversation transcripts are kept in memory per collection for
the lifetime of the process.

Examples:
  docuchat serve
  docuchat serve --port 9090
  MODEL_PROVIDER=azure docuchat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			store, err := buildQdrantStore(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = store.Close() }()

			indexer, err := ingest.NewIndexer(emb, store)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			retriever, err := rag.NewRetriever(emb, store, core.DefaultTopK)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			composer, err := buildComposer(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			journal, closeJournal := buildJournal(log)
			defer closeJournal()

			// Seed the collection registry from Qdrant so collections
			// ingested by previous runs stay queryable after a restart.
			// Their transcripts start empty, as transcripts live in memory.
			convoStore := convo.NewStore()
			if names, listErr := store.ListCollections(ctx); listErr != nil {
				log.Warn("could not list existing collections", slog.Any("error", listErr))
			} else {
				for _, name := range names {
					convoStore.Ensure(name)
				}
				log.Info("collection registry seeded", slog.Int("collections", len(names)))
			}

			svc, err := core.NewService(core.Config{
				Normalizer: buildNormalizer(),
				Indexer:    indexer,
				Retriever:  retriever,
				Vectors:    store,
				Convo:      convoStore,
				Composer:   composer,
				Journal:    journal,
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Flags win over env; env (including YAML-sourced values) fills
			// in when the flag was left at its default.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("DOCUCHAT_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("DOCUCHAT_PORT", port)
			}

			embedderBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
			srv, err := server.New(svc, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewQdrantPinger(store.Client()),
					server.NewEmbedderPinger(emb, "embedder-"+embedderBackend),
				},
				RateLimit: float64(getEnvInt("DOCUCHAT_RATE_LIMIT", 0)),
				RateBurst: getEnvInt("DOCUCHAT_RATE_BURST", 0),
				APIKey:    os.Getenv("DOCUCHAT_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
