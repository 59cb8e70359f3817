package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/quorum/pkg/analytics"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize proposals, approvals and procurement spend",
	Long: `Print a point-in-time overview: proposal counts by outcome, approval rate
overall and per approver role, requested budget, procurement spend and the
active vendor pool. Use -o json for the full breakdown by status, category,
risk level and budget bucket.`,
	Args: cobra.NoArgs,
	RunE: runAnalytics,
}

func init() {
	rootCmd.AddCommand(analyticsCmd)
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		r, err := analytics.Compute(ctx, a.store, time.Now().UTC())
		if err != nil {
			return err
		}
		return render(cmd, reportTable{r})
	})
}
