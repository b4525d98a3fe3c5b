// Package main provides the entry point for the aether CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/aether/cmd/aether/commands"
	"github.com/Sumatoshi-tech/aether/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
