package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragserve-go/internal/logging"
)

// NewAddCmd constructs the `ragserve add` command, which embeds and stores a
// single document from an argument or a file.
func NewAddCmd() *cobra.Command {
	var file string
	var metaPairs []string
	var allowDuplicates bool

	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Add a document to the vector store",
		Long: `Embed a document and store it in the configured vector store.

The document id is derived from its content and metadata, so adding the same
document twice returns the existing id without storing a duplicate (override
with --allow-duplicates). Metadata values that parse as JSON keep their type.

Examples:
  ragserve add "Paris is the capital of France."
  ragserve add --file ./notes/runbook.md --meta topic=ops --meta priority=1
  ragserve add --allow-duplicates "intentionally stored twice"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			var text string
			switch {
			case file != "" && len(args) > 0:
				return fmt.Errorf("add: provide either text or --file, not both")
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("add: read %s: %w", file, err)
				}
				text = string(data)
			case len(args) > 0:
				text = strings.Join(args, " ")
			default:
				return fmt.Errorf("add: provide document text or --file")
			}

			metadata, err := parseMetadata(metaPairs)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}

			pipeline, _, _, cleanup, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			defer cleanup()

			id, err := pipeline.AddDocument(ctx, text, metadata, allowDuplicates)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}

			fmt.Println(id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read document text from a file instead of arguments")
	cmd.Flags().StringArrayVarP(&metaPairs, "meta", "m", nil, "Metadata key=value pair (repeatable)")
	cmd.Flags().BoolVar(&allowDuplicates, "allow-duplicates", false, "Store the document even when identical content exists")

	return cmd
}
