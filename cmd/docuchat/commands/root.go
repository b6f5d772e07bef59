// Package commands defines all Cobra CLI commands for the docuchat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/b3ngr33n/docuchat-go/internal/audit"
	"github.com/b3ngr33n/docuchat-go/internal/config"
	"github.com/b3ngr33n/docuchat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docuchat",
		Short: "docuchat — chat with your documents over a vector store",
		Long: `docuchat ingests raw text, PDF files, and websites into named vector
collections and answers questions grounded in the ingested content.

Each collection keeps its own conversation transcript, so follow-up
questions see the earlier exchange. Answers come only from the stored
documents — the model is instructed to decline rather than invent.

Model and embedding providers are selected via environment variables
(MODEL_PROVIDER, EMBEDDING_PROVIDER) or a YAML config file
(~/.docuchat/config.yaml). See 'docuchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docuchat/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewCollectionsCmd(),
		NewVersionCmd(),
	)

	return root
}
