package commands

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/b3ngr33n/docuchat-go/internal/core"
	"github.com/b3ngr33n/docuchat-go/internal/logging"
	"github.com/b3ngr33n/docuchat-go/internal/rag"
	"github.com/b3ngr33n/docuchat-go/internal/tracing"
)

// NewAskCmd constructs the `docuchat ask` command, which answers a single
// question from the content of a named collection.
func NewAskCmd() *cobra.Command {
	var collection string
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question answered from a collection's content",
		Long: `Ask a natural language question answered only from the documents stored
in the named collection. If the collection holds nothing relevant, the
model says so rather than inventing an answer.

Each invocation is a fresh conversation — transcripts only accumulate
within a running server.

Examples:
  docuchat ask --collection manuals "what is the warranty period?"
  docuchat ask -c docs -k 5 "how do I configure TLS?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if strings.TrimSpace(collection) == "" {
				return fmt.Errorf("ask: --collection is required")
			}
			question := strings.Join(args, " ")

			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			store, err := buildQdrantStore(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = store.Close() }()

			exists, err := store.CollectionExists(ctx, collection)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			if !exists {
				return fmt.Errorf("ask: collection %q does not exist", collection)
			}

			if topK <= 0 {
				topK = core.DefaultTopK
			}
			retriever, err := rag.NewRetriever(emb, store, topK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			composer, err := buildComposer(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			docs, err := retriever.Retrieve(ctx, collection, question, topK)
			if err != nil {
				return fmt.Errorf("ask: retrieval failed: %w", err)
			}

			response, err := composer.Compose(ctx, question, docs, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), response)
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Collection to answer from (required)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", core.DefaultTopK, "Number of documents to retrieve")

	return cmd
}
