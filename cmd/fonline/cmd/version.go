package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fonline/droidbridge/cmd/fonline/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "fonline version %s (built %s)\n", Version, BuildTime)
		if cfg, err := config.Resolve(projectDir); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "engine %s (%s driver)\n", cfg.EngineVersion, cfg.EngineDriver)
		}
		return nil
	},
}
