package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/quorum/pkg/analytics"
	"mercator-hq/quorum/pkg/audit"
	"mercator-hq/quorum/pkg/cli"
	"mercator-hq/quorum/pkg/procurement"
	"mercator-hq/quorum/pkg/proposal"
	"mercator-hq/quorum/pkg/vendor"
	"mercator-hq/quorum/pkg/workflow"
)

// render writes data to the command output in the --output format.
func render(cmd *cobra.Command, data any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func timestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

type proposalTable []*proposal.Proposal

func (t proposalTable) Header() []string {
	return []string{"ID", "STATUS", "CATEGORY", "BUDGET", "RISK", "SUBMITTED_BY", "TITLE"}
}

func (t proposalTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		rows = append(rows, []string{
			p.ID, string(p.Status), string(p.Category), money(p.Budget),
			string(p.Analysis.RiskLevel), p.SubmittedBy, p.Title,
		})
	}
	return rows
}

type stepTable []*workflow.Step

func (t stepTable) Header() []string {
	return []string{"ID", "GEN", "ORDER", "ROLE", "APPROVER", "STATUS", "DECIDED_BY", "DECIDED_AT", "COMMENT"}
}

func (t stepTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{
			s.ID, strconv.Itoa(s.Generation), strconv.Itoa(s.Order), string(s.Role),
			s.Approver, string(s.Status), s.DecidedBy, timestamp(s.DecidedAt), s.Comment,
		})
	}
	return rows
}

// proposalDetail is the result of "proposal show".
type proposalDetail struct {
	Proposal *proposal.Proposal `json:"proposal"`
	Steps    []*workflow.Step   `json:"steps"`
	Order    *procurement.Order `json:"order,omitempty"`
}

func (d *proposalDetail) Header() []string {
	return []string{"FIELD", "VALUE"}
}

func (d *proposalDetail) Rows() [][]string {
	p := d.Proposal
	rows := [][]string{
		{"id", p.ID},
		{"title", p.Title},
		{"status", string(p.Status)},
		{"category", string(p.Category)},
		{"budget", money(p.Budget)},
		{"budget_category", p.Analysis.BudgetCategory},
		{"risk", fmt.Sprintf("%s (%.2f)", p.Analysis.RiskLevel, p.Analysis.RiskScore)},
		{"compliance", fmt.Sprintf("passed=%t issues=%d warnings=%d",
			p.Compliance.Passed, len(p.Compliance.Issues), len(p.Compliance.Warnings))},
		{"revision", strconv.Itoa(p.Revision)},
		{"submitted_by", p.SubmittedBy},
		{"summary", p.Analysis.Summary},
	}
	for _, s := range d.Steps {
		rows = append(rows, []string{
			fmt.Sprintf("step %d", s.Order),
			fmt.Sprintf("%s %s %s", s.Role, s.Status, s.ID),
		})
	}
	if d.Order != nil {
		rows = append(rows,
			[]string{"order", d.Order.ERPReference},
			[]string{"order_total", money(d.Order.TotalAmount)},
		)
	}
	return rows
}

type rankingTable []*vendor.Ranking

func (t rankingTable) Header() []string {
	return []string{"CATEGORY", "RANK", "VENDOR", "ID", "SCORE", "RATING"}
}

func (t rankingTable) Rows() [][]string {
	var rows [][]string
	for _, r := range t {
		if r.Empty() {
			rows = append(rows, []string{string(r.Category), "-", r.Reason, "", "", ""})
			continue
		}
		for _, s := range r.Vendors {
			rows = append(rows, []string{
				string(r.Category), strconv.Itoa(s.Rank), s.Vendor.Name, s.Vendor.ID,
				strconv.FormatFloat(s.Score, 'f', 3, 64),
				strconv.FormatFloat(s.Vendor.Rating, 'f', 1, 64),
			})
		}
	}
	return rows
}

type quotationTable []vendor.ScoredQuotation

func (t quotationTable) Header() []string {
	return []string{"RANK", "QUOTATION", "VENDOR", "AMOUNT", "SCORE", "SUBMITTED_BY"}
}

func (t quotationTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		q := s.Quotation
		name := q.Vendor.Name
		if name == "" {
			name = q.Vendor.ID
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Rank), q.ID, name, money(q.Amount),
			strconv.FormatFloat(s.Score, 'f', 3, 64), q.SubmittedBy,
		})
	}
	return rows
}

type pendingTable []*workflow.PendingStep

func (t pendingTable) Header() []string {
	return []string{"STEP", "ROLE", "ORDER", "APPROVER", "PROPOSAL", "BUDGET", "TITLE"}
}

func (t pendingTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, ps := range t {
		rows = append(rows, []string{
			ps.Step.ID, string(ps.Step.Role), strconv.Itoa(ps.Step.Order), ps.Step.Approver,
			ps.Proposal.ID, money(ps.Proposal.Budget), ps.Proposal.Title,
		})
	}
	return rows
}

type auditTable []*audit.Entry

func (t auditTable) Header() []string {
	return []string{"SEQ", "TIMESTAMP", "ACTION", "ACTOR", "ENTITY", "HASH"}
}

func (t auditTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		hash := e.ContentHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		entity := e.EntityType
		if e.EntityID != "" {
			entity += "/" + e.EntityID
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.Sequence, 10), timestamp(&e.Timestamp),
			string(e.Action), e.Actor, entity, hash,
		})
	}
	return rows
}

// verifyResult is the result of "audit verify".
type verifyResult struct {
	Checked  int      `json:"checked"`
	Tampered []string `json:"tampered"`
}

func (r *verifyResult) Header() []string {
	return []string{"CHECKED", "TAMPERED", "ENTRY_IDS"}
}

func (r *verifyResult) Rows() [][]string {
	return [][]string{{strconv.Itoa(r.Checked), strconv.Itoa(len(r.Tampered)), strings.Join(r.Tampered, " ")}}
}

type reportTable struct {
	*analytics.Report
}

func (t reportTable) Header() []string {
	return []string{"METRIC", "VALUE"}
}

func (t reportTable) Rows() [][]string {
	r := t.Report
	rows := [][]string{
		{"total_proposals", strconv.Itoa(r.TotalProposals)},
		{"approved", strconv.Itoa(r.ApprovedProposals)},
		{"rejected", strconv.Itoa(r.RejectedProposals)},
		{"pending", strconv.Itoa(r.PendingProposals)},
		{"approval_rate", fmt.Sprintf("%.1f%%", r.ApprovalRate)},
		{"budget_requested", money(r.TotalBudgetRequested)},
		{"procurement_orders", strconv.Itoa(r.ProcurementOrders)},
		{"procurement_spend", money(r.TotalProcurementSpend)},
		{"active_vendors", strconv.Itoa(r.ActiveVendors)},
	}
	for _, rs := range r.Roles {
		rows = append(rows, []string{
			"role." + rs.Role,
			fmt.Sprintf("approved=%d rejected=%d pending=%d rate=%.1f%%",
				rs.Approved, rs.Rejected, rs.Pending, rs.ApprovalRate),
		})
	}
	return rows
}
