// Command sentinel is the entry point for the Sentinel grounded-answer
// service. It provides a CLI interface (via Cobra) for one-shot questions,
// an interactive console, knowledge ingestion, and an HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/sentinelai/sentinel-go/cmd/sentinel/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
