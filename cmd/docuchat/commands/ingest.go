package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/b3ngr33n/docuchat-go/internal/ingest"
	"github.com/b3ngr33n/docuchat-go/internal/logging"
	"github.com/b3ngr33n/docuchat-go/internal/rag"
	"github.com/b3ngr33n/docuchat-go/internal/source"
)

// NewIngestCmd constructs the `docuchat ingest` command, which indexes text,
// PDF files, or a website into a named collection.
func NewIngestCmd() *cobra.Command {
	var collection string
	var text string
	var files []string
	var url string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest content into a named collection",
		Long: `Index raw text, PDF files, or a website into the named vector collection.

Sources can be combined in a single invocation; all of them are normalized
first and indexed together, so a failing source writes nothing. The
collection is created on first ingestion.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  docuchat ingest --collection notes --text "Meeting summary: ..."
  docuchat ingest --collection manuals --file spec.pdf --file errata.pdf
  docuchat ingest --collection docs --url https://example.com/handbook`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if strings.TrimSpace(collection) == "" {
				return fmt.Errorf("ingest: --collection is required")
			}
			if strings.TrimSpace(text) == "" && len(files) == 0 && strings.TrimSpace(url) == "" {
				return fmt.Errorf("ingest: provide at least one of --text, --file, --url")
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			store, err := buildQdrantStore(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = store.Close() }()

			indexer, err := ingest.NewIndexer(emb, store)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			normalizer := buildNormalizer()

			var sources []source.Source
			if strings.TrimSpace(text) != "" {
				sources = append(sources, source.Text{Content: text})
			}
			if len(files) > 0 {
				// The normalizer deletes its input files after extraction
				// (they are transient by contract), so spool copies of the
				// user's files rather than handing over the originals.
				spooled, err := spoolFiles(files)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				sources = append(sources, source.PDFFiles{Paths: spooled})
			}
			if strings.TrimSpace(url) != "" {
				sources = append(sources, source.Website{URL: url})
			}

			var segments []rag.Segment
			perSource := make([]int, 0, len(sources))
			for _, src := range sources {
				segs, err := normalizer.Normalize(ctx, src)
				if err != nil {
					return fmt.Errorf("ingest: failed to normalize %s source: %w", src.Kind(), err)
				}
				log.Info("source normalized",
					slog.String("kind", src.Kind()),
					slog.Int("segments", len(segs)))
				perSource = append(perSource, len(segs))
				segments = append(segments, segs...)
			}

			if len(segments) == 0 {
				log.Info("no indexable content, nothing written", slog.String("collection", collection))
				return nil
			}

			if err := indexer.Index(ctx, collection, segments); err != nil {
				return fmt.Errorf("ingest: indexing failed: %w", err)
			}

			j, closeJournal := buildJournal(log)
			defer closeJournal()
			if j != nil {
				for i, src := range sources {
					if err := j.Record(ctx, collection, src.Kind(), perSource[i]); err != nil {
						log.Warn("journal record failed", slog.Any("error", err))
					}
				}
			}

			log.Info("ingestion complete",
				slog.String("collection", collection),
				slog.Int("segments", len(segments)))
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d segments into collection %q\n", len(segments), collection)
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Target collection name (required)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Raw text to index")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "PDF file to index (repeatable)")
	cmd.Flags().StringVarP(&url, "url", "u", "", "Website URL to crawl and index")

	return cmd
}

// spoolFiles copies each file to a temp location and returns the copies'
// paths. On any failure, copies made so far are removed.
func spoolFiles(paths []string) ([]string, error) {
	spooled := make([]string, 0, len(paths))

	cleanup := func() {
		for _, p := range spooled {
			_ = os.Remove(p)
		}
	}

	for _, path := range paths {
		src, err := os.Open(path)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}

		tmp, err := os.CreateTemp("", "docuchat-ingest-*.pdf")
		if err != nil {
			src.Close()
			cleanup()
			return nil, fmt.Errorf("failed to create temp file: %w", err)
		}

		_, copyErr := io.Copy(tmp, src)
		src.Close()
		closeErr := tmp.Close()
		if copyErr != nil || closeErr != nil {
			_ = os.Remove(tmp.Name())
			cleanup()
			if copyErr != nil {
				return nil, fmt.Errorf("failed to copy %s: %w", path, copyErr)
			}
			return nil, fmt.Errorf("failed to copy %s: %w", path, closeErr)
		}

		spooled = append(spooled, tmp.Name())
	}

	return spooled, nil
}
