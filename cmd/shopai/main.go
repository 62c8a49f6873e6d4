// Command shopai is the entry point for the shopping assistant. It answers
// questions about a product catalog from the command line, an interactive
// terminal chat, or an HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/shopai-go/cmd/shopai/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
