package main

import (
	"os"

	"github.com/wonny/arbfilter/cmd/arbfilter/commands"
)

// main is the entry point for the arbfilter CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/arbfilter [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
