package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/quorum/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Quorum - event proposal approval and procurement workflow",
	Long: `Quorum takes institutional event proposals from submission to purchase order.

Every submitted proposal is analysed for budget and risk, validated against the
policy table and routed through a sequential chain of approvers. Fully approved
proposals get a procurement order and vendor recommendations. Every step is
written to an append-only, hash-verified audit trail.

Exit codes:
  0  success
  1  failure
  2  configuration or policy error
  3  request refused by the workflow (validation, out of order, already decided)
  4  proposal or step not found`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code matching the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, csv")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
