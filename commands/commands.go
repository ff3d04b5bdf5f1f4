// Package commands adds maintenance subcommands to the PocketBase CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/pocketbase/pocketbase/core"
	"github.com/spf13/cobra"

	"projectmeasure/collections"
	"projectmeasure/measurements"
	"projectmeasure/services"
)

// Register attaches the summary, rollups and pricelist commands to root.
// Each command makes sure the collections exist before touching data.
func Register(root *cobra.Command, app core.App, svc *measurements.Service) {
	prepare := func(cmd *cobra.Command, args []string) error {
		collections.Setup(app)
		return nil
	}

	summary := &cobra.Command{
		Use:               "summary",
		Short:             "Project financial summaries",
		PersistentPreRunE: prepare,
	}
	summary.AddCommand(newSummaryRefreshCommand(svc))

	rollups := &cobra.Command{
		Use:               "rollups",
		Short:             "Per-entry usage rollups",
		PersistentPreRunE: prepare,
	}
	rollups.AddCommand(newRollupsRebuildCommand(svc))

	pricelist := &cobra.Command{
		Use:               "pricelist",
		Short:             "Price-list maintenance",
		PersistentPreRunE: prepare,
	}
	pricelist.AddCommand(newPriceListImportCommand(svc))

	root.AddCommand(summary, rollups, pricelist)
}

func newSummaryRefreshCommand(svc *measurements.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <projectId>",
		Short: "Recompute and print a project's financial summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := svc.GetProjectSummary(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("refresh summary of %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "project:        %s\n", s.ProjectID)
			fmt.Fprintf(out, "total amount:   %s\n", services.FormatAmount(s.TotalAmount, 2))
			fmt.Fprintf(out, "total with VAT: %s\n", services.FormatAmount(s.TotalWithVAT, 2))
			for _, b := range s.Breakdown {
				fmt.Fprintf(out, "  %-12s %s (%d sessions)\n", b.Discipline, b.Amount, b.SessionsCount)
			}
			fmt.Fprintf(out, "progress:       %s%%\n", s.DisplayProgress.StringFixed(2))
			if s.OverBilled {
				fmt.Fprintf(out, "warning: billed %s%% of the contract amount\n", s.ProgressPercentage.StringFixed(2))
			}
			fmt.Fprintf(out, "sessions:       %d (%d approved)\n", s.SessionsCount, s.ApprovedSessionsCount)
			return nil
		},
	}
}

func newRollupsRebuildCommand(svc *measurements.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild every detailed measurement and financial report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := svc.RebuildAllRollups(cmd.Context())
			if err != nil {
				return fmt.Errorf("rebuild rollups: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d entries: %d detailed measurements, %d financial reports\n",
				stats.Entries, stats.DetailedMeasurements, stats.FinancialReports)
			return nil
		},
	}
}

func newPriceListImportCommand(svc *measurements.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "import <priceListId> <file>",
		Short: "Import a CSV or XLSX file into a price list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := svc.ImportPriceList(cmd.Context(), args[0], f, args[1])
			if err != nil {
				return fmt.Errorf("import %s: %w", args[1], err)
			}

			out := cmd.OutOrStdout()
			for _, e := range result.Errors {
				fmt.Fprintf(out, "row %d: %s: %s\n", e.Row, e.Field, e.Message)
			}
			fmt.Fprintf(out, "created %d, updated %d, failed %d\n", result.Created, result.Updated, result.Failed)
			if result.RolledBack {
				return fmt.Errorf("import of %s was not fully applied", args[1])
			}
			return nil
		},
	}
}
