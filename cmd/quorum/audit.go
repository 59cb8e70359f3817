package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/quorum/pkg/audit"
	"mercator-hq/quorum/pkg/audit/export"
	"mercator-hq/quorum/pkg/cli"
)

// verifyBatchSize bounds the entries read per query during verification.
const verifyBatchSize = 1000

var auditFlags struct {
	proposal string
	format   string
	file     string
	since    string
	until    string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect, verify and export the audit trail",
	Long: `Inspect, verify and export the append-only audit trail.

Subcommands:
  trail   - Show the timeline of one proposal, or the whole log
  verify  - Recompute and check every entry's content hash
  export  - Export entries as JSON or CSV`,
}

var auditTrailCmd = &cobra.Command{
	Use:   "trail [proposal-id]",
	Short: "Show a proposal's audit timeline",
	Long: `Show a proposal's audit entries in canonical order. Without a proposal
id the whole log is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE:  runAuditTrail,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit entry hashes",
	Long: `Recompute the content hash of every stored audit entry and report the
entries whose stored hash does not match. The command fails when any entry
was tampered with.`,
	Args: cobra.NoArgs,
	RunE: runAuditVerify,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit entries",
	Long: `Export audit entries in canonical order.

Examples:
  # Export everything as JSON to stdout
  quorum audit export

  # Export one proposal's entries as CSV
  quorum audit export --proposal 6b0e... --format csv --file trail.csv

  # Export a time window
  quorum audit export --since 2026-01-01 --until 2026-02-01`,
	Args: cobra.NoArgs,
	RunE: runAuditExport,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditTrailCmd, auditVerifyCmd, auditExportCmd)

	auditVerifyCmd.Flags().StringVar(&auditFlags.proposal, "proposal", "", "only verify one proposal's entries")

	auditExportCmd.Flags().StringVar(&auditFlags.proposal, "proposal", "", "filter by proposal id")
	auditExportCmd.Flags().StringVar(&auditFlags.format, "format", "json", "export format: json, csv")
	auditExportCmd.Flags().StringVarP(&auditFlags.file, "file", "f", "", "output file (default: stdout)")
	auditExportCmd.Flags().StringVar(&auditFlags.since, "since", "", "start time (YYYY-MM-DD or RFC3339)")
	auditExportCmd.Flags().StringVar(&auditFlags.until, "until", "", "end time (YYYY-MM-DD or RFC3339)")
}

func runAuditTrail(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var id string
		if len(args) == 1 {
			id = args[0]
		}
		entries, err := a.engine.AuditTrail(ctx, id)
		if err != nil {
			return err
		}
		return render(cmd, auditTable(entries))
	})
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "entries")
		res, err := verifyEntries(ctx, a.auditStore, auditFlags.proposal, progress)
		if err != nil {
			return err
		}
		if err := render(cmd, res); err != nil {
			return err
		}
		if len(res.Tampered) > 0 {
			return fmt.Errorf("%d of %d audit entries failed verification", len(res.Tampered), res.Checked)
		}
		return nil
	})
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	exporter, ok := export.ForFormat(auditFlags.format)
	if !ok {
		return cli.NewConfigError("format", fmt.Sprintf("unknown export format %q (want json or csv)", auditFlags.format))
	}
	q := &audit.Query{ProposalID: auditFlags.proposal}
	if auditFlags.since != "" {
		t, err := parseTime(auditFlags.since)
		if err != nil {
			return cli.NewConfigError("since", err.Error())
		}
		q.StartTime = &t
	}
	if auditFlags.until != "" {
		t, err := parseTime(auditFlags.until)
		if err != nil {
			return cli.NewConfigError("until", err.Error())
		}
		q.EndTime = &t
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		entries, err := a.auditStore.Query(ctx, q)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if auditFlags.file != "" {
			f, err := os.Create(auditFlags.file)
			if err != nil {
				return cli.NewCommandError("export", err)
			}
			defer f.Close()
			w = f
		}
		if err := exporter.Export(ctx, entries, w); err != nil {
			return err
		}
		if auditFlags.file != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d entries to %s\n", len(entries), auditFlags.file)
		}
		return nil
	})
}

// verifyEntries checks the content hash of every entry, paging through the
// storage by sequence number.
func verifyEntries(ctx context.Context, storage audit.Storage, proposalID string, progress cli.ProgressReporter) (*verifyResult, error) {
	total, err := storage.Count(ctx, &audit.Query{ProposalID: proposalID})
	if err != nil {
		return nil, err
	}
	progress.Start(total)

	res := &verifyResult{Tampered: []string{}}
	var after int64
	for {
		batch, err := storage.Query(ctx, &audit.Query{
			ProposalID:    proposalID,
			AfterSequence: after,
			BySequence:    true,
			Limit:         verifyBatchSize,
		})
		if err != nil {
			progress.Error(err)
			return nil, err
		}
		for _, e := range batch {
			res.Checked++
			if !audit.Verify(e) {
				res.Tampered = append(res.Tampered, e.ID)
			}
		}
		progress.Update(int64(res.Checked))
		if len(batch) < verifyBatchSize {
			break
		}
		after = batch[len(batch)-1].Sequence
	}
	progress.Finish()
	return res, nil
}
