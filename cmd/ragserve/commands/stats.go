package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragserve-go/internal/logging"
)

// NewStatsCmd constructs the `ragserve stats` subcommand.
// It prints the document count and collection name of the configured store.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print vector store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			pipeline, emb, _, cleanup, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer cleanup()

			stats := pipeline.Stats(ctx)
			fmt.Printf("collection: %s\ndocuments:  %d\nembedder:   %s (%d dimensions)\nmodel:      %s\n",
				stats.CollectionName, stats.DocumentCount, emb.ModelName(), emb.Dimensions(), pipeline.ModelUsed())
			return nil
		},
	}
}
