package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "caggunion",
	Short: "Build the real-time query of a continuous aggregate.",
	Long: `caggunion combines the materialized part of a continuous aggregate with the
part aggregated on the fly from its hypertable into a single UNION ALL query,
split at the materialization watermark.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute(ctx context.Context) {
	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file, ~/.caggunion/config.yaml by default.")
}
