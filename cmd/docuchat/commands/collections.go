package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/b3ngr33n/docuchat-go/internal/logging"
)

// NewCollectionsCmd constructs the `docuchat collections` command, which
// lists the collections stored on the Qdrant instance.
func NewCollectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections on the configured Qdrant instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			store, err := buildQdrantStore(log)
			if err != nil {
				return fmt.Errorf("collections: %w", err)
			}
			defer func() { _ = store.Close() }()

			names, err := store.ListCollections(ctx)
			if err != nil {
				return fmt.Errorf("collections: %w", err)
			}

			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No collections found.")
				return nil
			}

			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
