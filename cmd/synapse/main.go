// Package main provides the entry point for the synapse CLI.
package main

import (
	"os"

	"github.com/YuanArchive/synapse-ai-context/cmd/synapse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
