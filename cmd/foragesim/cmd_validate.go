package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/forage-sim/internal/config"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a scenario file without running it",
		Long: `Load a scenario, overlay it on the defaults and environment, and check
every name and range.

Examples:
  foragesim validate -c scenario.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			sc, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := sc.Validate(); err != nil {
				return fmt.Errorf("invalid scenario: %w", err)
			}

			agentCount := 0
			for _, sf := range sc.Subfleets {
				agentCount += sf.Agents
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario ok: %s agents in %d subfleets, %s units, %s steps × %d replicates\n",
				humanize.Comma(int64(agentCount)), len(sc.Subfleets),
				humanize.Comma(int64(sc.Environment.Units)), humanize.Comma(int64(sc.Duration)), sc.Replicates)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Scenario YAML file (defaults when empty)")
	return cmd
}
