package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bridge-cli/internal/model"
	"github.com/sells-group/bridge-cli/internal/report"
)

var budgetCmd = &cobra.Command{
	Use:   "budget <run-id>",
	Short: "Print the uncertainty budgets of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Resolves a missing run to ErrNotFound rather than an empty budget.
		if _, err := st.GetRun(ctx, args[0]); err != nil {
			return eris.Wrap(err, "budget")
		}
		results, err := st.ListResults(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "budget")
		}

		block, _ := cmd.Flags().GetInt("block")
		locale, _ := cmd.Flags().GetString("locale")
		return writeBudgets(os.Stdout, report.NewPrinter(locale), results, block)
	},
}

func init() {
	budgetCmd.Flags().Int("block", -1, "only this block")
	budgetCmd.Flags().String("locale", "en", "language used to format numbers")
	rootCmd.AddCommand(budgetCmd)
}

// writeBudgets prints the budget of every result, or only of block when it
// is not negative.
func writeBudgets(out io.Writer, pr report.Printer, results []model.ResultRow, block int) error {
	found := false
	for _, r := range results {
		if block >= 0 && r.Block != block {
			continue
		}
		found = true
		_, _ = fmt.Fprintf(out, "Block %d %s (%s)\n", r.Block, r.Name, r.Level)
		pr.WriteBudget(out, r.Budget)
		_, _ = fmt.Fprintln(out)
	}
	if !found && block >= 0 {
		return eris.Errorf("budget: no result for block %d", block)
	}
	return nil
}
