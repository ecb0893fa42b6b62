package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragserve-go/internal/logging"
)

// NewAskCmd constructs the `ragserve ask` command, which answers a single
// natural language question against the stored documents and prints the
// result to stdout.
func NewAskCmd() *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the stored documents",
		Long: `Ask a natural language question answered against the vector store.

The most similar stored documents are retrieved and handed to the configured
generation provider as context. Without a generation provider configured
(GENERATION_PROVIDER unset), a deterministic mock answer is produced instead,
which is useful for verifying retrieval quality locally.

Examples:
  ragserve ask "what is the capital of France?"
  ragserve ask --max-results 3 "summarise the deployment runbook"
  GENERATION_PROVIDER=ollama ragserve ask "how do I rotate the API keys?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			pipeline, _, _, cleanup, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer cleanup()

			question := strings.Join(args, " ")
			ans := pipeline.AnswerQuestion(ctx, question, maxResults)

			fmt.Println(ans.Answer)

			if len(ans.Sources) > 0 {
				fmt.Println("\nSources:")
				for i, src := range ans.Sources {
					fmt.Printf("  %d. [%.3f] %s\n", i+1, src.Score, preview(src.Content, 120))
				}
			}
			fmt.Printf("\nmodel=%s tokens=%d context_documents=%d processing_time=%.2fs\n",
				ans.ModelUsed, ans.TokensUsed, ans.ContextDocumentsFound, ans.ProcessingTime)

			return nil
		},
	}

	cmd.Flags().IntVarP(&maxResults, "max-results", "n", 5, "Maximum number of context documents to retrieve (1-10)")

	return cmd
}

// preview returns s truncated to at most n runes, with an ellipsis when cut.
func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
