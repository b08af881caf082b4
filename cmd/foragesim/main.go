// Command foragesim runs foraging scenarios and serves stored results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "foragesim",
		Short: "Foraging simulation with competition and knowledge sharing",
		Long: `foragesim runs agents that repeatedly choose among resource units,
compete for yield and optionally share what they know, then exports
per-step trackers for analysis.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newServeCmd(),
		newDefaultsCmd(),
	)
	return rootCmd
}
