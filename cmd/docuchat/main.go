// Command docuchat is the entry point for the document-chat service: it
// ingests text, PDFs, and websites into named vector collections and answers
// questions grounded in the ingested content. It provides a CLI interface
// (via Cobra) and an HTTP server for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/b3ngr33n/docuchat-go/cmd/docuchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
