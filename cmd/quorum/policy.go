package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/quorum/pkg/policy"
)

var policyFlags struct {
	file string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Validate and inspect the policy table",
	Long: `Validate and inspect the policy table that drives analysis, compliance
and routing.

Subcommands:
  validate  - Validate a policy file
  show      - Print the effective policy table as YAML`,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <policy.yaml>",
	Short: "Validate a policy file",
	Long: `Parse and validate a policy file. Every problem is reported at once and
the command exits 2 when the file is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyValidate,
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective policy table",
	Long: `Print the policy table as YAML with derived defaults filled in. Without
--file, the table from the configured policy.file_path is shown, or the
built-in table when none is configured.`,
	Args: cobra.NoArgs,
	RunE: runPolicyShow,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyValidateCmd, policyShowCmd)

	policyShowCmd.Flags().StringVarP(&policyFlags.file, "file", "f", "", "policy file (default: from config)")
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	t, err := policy.LoadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Policy valid (%d categories)\n", len(t.CategoryNames()))
	return nil
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	path := policyFlags.file
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Policy.FilePath
	}

	t := policy.Default()
	if path != "" {
		var err error
		if t, err = policy.LoadFile(path); err != nil {
			return err
		}
	}
	data, err := policy.Marshal(t)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
