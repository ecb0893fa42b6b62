// Package commands defines all Cobra CLI commands for the ragserve binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/ragserve-go/internal/audit"
	"github.com/54b3r/ragserve-go/internal/config"
	"github.com/54b3r/ragserve-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragserve",
		Short: "ragserve — a retrieval-augmented document question-answering service",
		Long: `ragserve stores documents as embeddings in a vector store and answers
natural language questions about them using retrieval-augmented generation.

Documents are content-addressed: adding the same text and metadata twice is
a no-op. Questions are answered against the most similar stored documents,
either by a configured LLM provider or, when no provider is configured, by
a deterministic mock generator useful for local development.

Backends are selected via environment variables or a YAML config file
(~/.ragserve/config.yaml). Env vars always win over YAML.
See 'ragserve --help' for available commands.`,
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragserve/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewAddCmd(),
		NewSearchCmd(),
		NewStatsCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
