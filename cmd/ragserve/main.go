// Command ragserve is the entry point for the RAG document service.
// It provides a CLI interface (via Cobra) and an HTTP server exposing
// a REST API for document management and retrieval-augmented question
// answering.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragserve-go/cmd/ragserve/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
