package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/quorum/pkg/cli"
	"mercator-hq/quorum/pkg/vendor"
)

var vendorFlags struct {
	actor    string
	proposal string
	notes    string
}

var vendorCmd = &cobra.Command{
	Use:   "vendor",
	Short: "Manage the vendor catalog",
	Long: `Import vendors and rank them for procurement.

Subcommands:
  import     - Import a YAML vendor catalog
  recommend  - Rank vendors for a category or an approved proposal
  quote      - Submit a vendor quotation for a proposal in procurement
  quotes     - Rank a proposal's quotations`,
}

var vendorImportCmd = &cobra.Command{
	Use:   "import <catalog.yaml>",
	Short: "Import a vendor catalog",
	Long: `Import a YAML vendor catalog. Vendors are upserted by id; entries
without an id get a new one.`,
	Args: cobra.ExactArgs(1),
	RunE: runVendorImport,
}

var vendorRecommendCmd = &cobra.Command{
	Use:   "recommend [category]",
	Short: "Rank vendors",
	Long: `Rank active vendors by rating, reliability, price and experience.

Examples:
  # Rank caterers
  quorum vendor recommend catering

  # Rank vendors for every category in a proposal's procurement order
  quorum vendor recommend --proposal 6b0e...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVendorRecommend,
}

var vendorQuoteCmd = &cobra.Command{
	Use:   "quote <proposal-id> <vendor-id> <amount>",
	Short: "Submit a vendor quotation",
	Long: `Submit a vendor's quotation for a proposal in procurement and show all
of the proposal's quotations ranked by vendor score and price.

Examples:
  quorum vendor quote 6b0e... v-catering-1 42000 --notes "incl. tea breaks" --actor purchase`,
	Args: cobra.ExactArgs(3),
	RunE: runVendorQuote,
}

var vendorQuotesCmd = &cobra.Command{
	Use:   "quotes <proposal-id>",
	Short: "Rank a proposal's quotations",
	Args:  cobra.ExactArgs(1),
	RunE:  runVendorQuotes,
}

func init() {
	rootCmd.AddCommand(vendorCmd)
	vendorCmd.AddCommand(vendorImportCmd, vendorRecommendCmd, vendorQuoteCmd, vendorQuotesCmd)

	vendorImportCmd.Flags().StringVar(&vendorFlags.actor, "actor", systemActor, "user performing the import")
	vendorQuoteCmd.Flags().StringVar(&vendorFlags.actor, "actor", systemActor, "user submitting the quotation")
	vendorQuoteCmd.Flags().StringVar(&vendorFlags.notes, "notes", "", "quotation notes")
	vendorRecommendCmd.Flags().StringVar(&vendorFlags.proposal, "proposal", "", "rank for a proposal's procurement order")
}

func runVendorImport(cmd *cobra.Command, args []string) error {
	vendors, err := vendor.LoadCatalog(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.engine.ImportVendors(ctx, vendors, vendorFlags.actor); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d vendors\n", len(vendors))
		return nil
	})
}

func runVendorRecommend(cmd *cobra.Command, args []string) error {
	if (len(args) == 1) == (vendorFlags.proposal != "") {
		return cli.NewConfigError("", "give either a category or --proposal")
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if vendorFlags.proposal != "" {
			rankings, err := a.engine.RecommendForProposal(ctx, vendorFlags.proposal)
			if err != nil {
				return err
			}
			return render(cmd, rankingTable(rankings))
		}
		category := vendor.Category(args[0])
		if !category.IsValid() {
			return cli.NewConfigError("category", fmt.Sprintf("unknown vendor category %q", args[0]))
		}
		ranking, err := a.engine.RecommendVendors(ctx, category)
		if err != nil {
			return err
		}
		return render(cmd, rankingTable{ranking})
	})
}

func runVendorQuote(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return cli.NewConfigError("amount", fmt.Sprintf("invalid amount %q", args[2]))
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ranked, err := a.engine.SubmitQuotation(ctx, args[0], args[1], amount, vendorFlags.notes, vendorFlags.actor)
		if err != nil {
			return err
		}
		return render(cmd, quotationTable(ranked))
	})
}

func runVendorQuotes(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ranked, err := a.engine.Quotations(ctx, args[0])
		if err != nil {
			return err
		}
		return render(cmd, quotationTable(ranked))
	})
}
