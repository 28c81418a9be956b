package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hopfield",
		Short: "Hopfield associative memory",
		Long: `hopfield stores binary patterns in a Hopfield network and reconstructs
them from noisy or partial input.

Patterns are square grids of +1/-1 cells. Serve them over HTTP with
'hopfield serve', to MCP clients with 'hopfield mcp-server', or try the
engine offline with 'hopfield recall'.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.hopfield/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newMCPServerCmd(),
		newRecallCmd(),
		newConfigCmd(),
	)
	return rootCmd
}
