package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragserve-go/internal/logging"
)

// NewSearchCmd constructs the `ragserve search` command, which runs a
// similarity search against the vector store and prints the matches.
func NewSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the stored documents by similarity",
		Long: `Embed the query and return the most similar stored documents.

Scores are cosine-style similarities in [0, 1], where 1.0 means the stored
document embeds identically to the query.

Examples:
  ragserve search "capital of France"
  ragserve search --limit 3 "database connection pooling"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			pipeline, _, _, cleanup, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer cleanup()

			query := strings.Join(args, " ")
			results, err := pipeline.Search(ctx, query, limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(results) == 0 {
				fmt.Println("no matching documents")
				return nil
			}
			for i, res := range results {
				fmt.Printf("%d. [%.3f] %s\n   %s\n", i+1, res.Score, res.ID, preview(res.Content, 160))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results (1-20)")

	return cmd
}
