package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "saturn",
	Short: "Mercator Saturn - policy decision runtime for autonomous agents",
	Long: `Mercator Saturn is an open-source policy decision runtime that turns
declarative PDL policies into fast, auditable authorization decisions for
autonomous agents.

It provides:
  - Policy compilation to compact bytecode with validation and optimization
  - Deterministic rule evaluation with deny-wins resolution
  - Stateful constraints: token-bucket rate limits and temporal windows
  - Decision audit events and Prometheus metrics

For more information, visit: https://github.com/mercator-hq/saturn`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
