package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/quorum/pkg/cli"
	"mercator-hq/quorum/pkg/policy"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/workflow"
)

var proposalFlags struct {
	actor       string
	comment     string
	status      []string
	category    string
	department  string
	submittedBy string
	since       string
	limit       int
	role        string
}

var proposalCmd = &cobra.Command{
	Use:   "proposal",
	Short: "Submit, review and inspect proposals",
	Long: `Submit event proposals and move them through the approval chain.

Subcommands:
  submit    - Submit a proposal from a YAML draft
  decide    - Record a decision on the active approval step
  resubmit  - Resubmit a proposal after a clarification request
  complete  - Mark a proposal in procurement as completed
  show      - Show a proposal with its approval steps and order
  list      - List proposals
  pending   - List approval steps waiting for a decision`,
}

var proposalSubmitCmd = &cobra.Command{
	Use:   "submit <draft.yaml>",
	Short: "Submit a proposal",
	Long: `Submit a proposal from a YAML draft file.

Draft format:
  title: Workshop on Applied Cryptography
  description: Two-day hands-on workshop for final year students.
  category: workshop
  budget: 85000
  date: 2026-11-20
  venue: Seminar Hall B
  attendees: 120
  department: CSE

Examples:
  quorum proposal submit draft.yaml --actor dr.rao`,
	Args: cobra.ExactArgs(1),
	RunE: runProposalSubmit,
}

var proposalDecideCmd = &cobra.Command{
	Use:   "decide <step-id> <approved|rejected|clarification_requested>",
	Short: "Decide the active approval step",
	Long: `Record a decision on an approval step. Only the active step of the
proposal's current chain can be decided, and only once.

Examples:
  quorum proposal decide 4f1c... approved --actor hod.cse
  quorum proposal decide 4f1c... clarification_requested --actor bursar --comment "attach quotes"`,
	Args: cobra.ExactArgs(2),
	RunE: runProposalDecide,
}

var proposalResubmitCmd = &cobra.Command{
	Use:   "resubmit <proposal-id> <revision.yaml>",
	Short: "Resubmit a proposal with revised fields",
	Long: `Resubmit a proposal that has a clarification request outstanding. The
revision file holds only the fields that change; the proposal is analysed
again and routed through a fresh approval chain.`,
	Args: cobra.ExactArgs(2),
	RunE: runProposalResubmit,
}

var proposalCompleteCmd = &cobra.Command{
	Use:   "complete <proposal-id>",
	Short: "Mark a proposal as completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runProposalComplete,
}

var proposalShowCmd = &cobra.Command{
	Use:   "show <proposal-id>",
	Short: "Show a proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  runProposalShow,
}

var proposalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals",
	Long: `List proposals, newest first.

Examples:
  quorum proposal list --status in_review --status revision_requested
  quorum proposal list --category workshop --since 2026-01-01 -o csv`,
	Args: cobra.NoArgs,
	RunE: runProposalList,
}

var proposalPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List steps awaiting a decision",
	Long: `List the active approval step of every proposal in review, oldest
proposal first. Use --role to show one approver's inbox.

Examples:
  quorum proposal pending --role finance`,
	Args: cobra.NoArgs,
	RunE: runProposalPending,
}

func init() {
	rootCmd.AddCommand(proposalCmd)
	proposalCmd.AddCommand(proposalSubmitCmd, proposalDecideCmd, proposalResubmitCmd,
		proposalCompleteCmd, proposalShowCmd, proposalListCmd, proposalPendingCmd)

	for _, c := range []*cobra.Command{proposalSubmitCmd, proposalDecideCmd, proposalResubmitCmd, proposalCompleteCmd} {
		c.Flags().StringVar(&proposalFlags.actor, "actor", "", "user performing the action")
		c.MarkFlagRequired("actor")
	}
	proposalDecideCmd.Flags().StringVar(&proposalFlags.comment, "comment", "", "decision comment")

	proposalListCmd.Flags().StringSliceVar(&proposalFlags.status, "status", nil, "filter by status (repeatable)")
	proposalListCmd.Flags().StringVar(&proposalFlags.category, "category", "", "filter by category")
	proposalListCmd.Flags().StringVar(&proposalFlags.department, "department", "", "filter by department")
	proposalListCmd.Flags().StringVar(&proposalFlags.submittedBy, "submitted-by", "", "filter by submitter")
	proposalListCmd.Flags().StringVar(&proposalFlags.since, "since", "", "only proposals created on or after this date (YYYY-MM-DD or RFC3339)")
	proposalListCmd.Flags().IntVar(&proposalFlags.limit, "limit", 0, "max results (0 = all)")

	proposalPendingCmd.Flags().StringVar(&proposalFlags.role, "role", "", "only steps assigned to this role")
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func runProposalSubmit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := submitDraftFile(ctx, a.engine, args[0], proposalFlags.actor)
		if err != nil {
			return err
		}
		return render(cmd, proposalTable{p})
	})
}

func runProposalDecide(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		step, err := a.engine.Decide(ctx, args[0], workflow.Decision(args[1]), proposalFlags.comment, proposalFlags.actor)
		if err != nil {
			return err
		}
		return render(cmd, stepTable{step})
	})
}

func runProposalResubmit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var rev proposal.Revision
		if err := readYAML(args[1], &rev); err != nil {
			return err
		}
		p, err := a.engine.Resubmit(ctx, args[0], &rev, proposalFlags.actor)
		if err != nil {
			return err
		}
		return render(cmd, proposalTable{p})
	})
}

func runProposalComplete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := a.engine.Complete(ctx, args[0], proposalFlags.actor)
		if err != nil {
			return err
		}
		return render(cmd, proposalTable{p})
	})
}

func runProposalShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		d, err := loadProposalDetail(ctx, a.engine, args[0])
		if err != nil {
			return err
		}
		return render(cmd, d)
	})
}

func runProposalList(cmd *cobra.Command, args []string) error {
	filter, err := proposalFilter()
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ps, err := a.engine.ListProposals(ctx, filter)
		if err != nil {
			return err
		}
		return render(cmd, proposalTable(ps))
	})
}

func runProposalPending(cmd *cobra.Command, args []string) error {
	role := policy.Role(proposalFlags.role)
	if role != "" && !role.IsKnown() {
		return cli.NewConfigError("role", fmt.Sprintf("unknown role %q", proposalFlags.role))
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		pending, err := a.engine.PendingSteps(ctx, role)
		if err != nil {
			return err
		}
		return render(cmd, pendingTable(pending))
	})
}

// submitDraftFile reads a YAML draft and submits it. The actor is recorded
// as submitter when the draft does not name one.
func submitDraftFile(ctx context.Context, engine *workflow.Engine, path, actor string) (*proposal.Proposal, error) {
	var draft proposal.Draft
	if err := readYAML(path, &draft); err != nil {
		return nil, err
	}
	if draft.SubmittedBy == "" {
		draft.SubmittedBy = actor
	}
	return engine.Submit(ctx, &draft, actor)
}

// loadProposalDetail returns the proposal with the steps of its current
// chain and its order, if one was generated.
func loadProposalDetail(ctx context.Context, engine *workflow.Engine, id string) (*proposalDetail, error) {
	p, err := engine.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := engine.Steps(ctx, id, p.Generation())
	if err != nil {
		return nil, err
	}
	d := &proposalDetail{Proposal: p, Steps: steps}
	order, err := engine.Procurement(ctx, id)
	switch {
	case err == nil:
		d.Order = order
	case !errors.Is(err, workflow.ErrNotFound):
		return nil, err
	}
	return d, nil
}

func proposalFilter() (workflow.ProposalFilter, error) {
	f := workflow.ProposalFilter{
		Category:    policy.Category(proposalFlags.category),
		Department:  proposalFlags.department,
		SubmittedBy: proposalFlags.submittedBy,
		Limit:       proposalFlags.limit,
	}
	for _, s := range proposalFlags.status {
		f.Statuses = append(f.Statuses, proposal.Status(s))
	}
	if proposalFlags.since != "" {
		since, err := parseTime(proposalFlags.since)
		if err != nil {
			return f, cli.NewConfigError("since", err.Error())
		}
		f.Since = &since
	}
	return f, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want YYYY-MM-DD or RFC3339)", s)
	}
	return t, nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cli.NewCommandError("read", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
