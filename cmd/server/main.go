// Package main implements the entry point for the analysis API server,
// which accepts prompts and uploaded tables, runs analysis tasks in the
// background and serves their incremental results.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "analysis-api",
		Short:        "Asynchronous analysis task server",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newVersionCommand())
	return root
}
