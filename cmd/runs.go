package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bridge-cli/internal/model"
	"github.com/sells-group/bridge-cli/internal/report"
	"github.com/sells-group/bridge-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored analysis runs",
	Long:  "Commands for listing stored runs and showing their results.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		label, _ := cmd.Flags().GetString("label")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Label:  label,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the results of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rep, err := loadReport(ctx, st, args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		locale, _ := cmd.Flags().GetString("locale")
		report.NewPrinter(locale).WriteText(os.Stdout, rep)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, reducing, fitting, complete, failed)")
	runsListCmd.Flags().String("label", "", "filter by the run id recorded in the workbook")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsShowCmd.Flags().Bool("json", false, "print the run as JSON")
	runsShowCmd.Flags().String("locale", "en", "language used to format numbers")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// loadReport reads a stored run with its results and summaries.
func loadReport(ctx context.Context, st store.Store, id string) (*report.Report, error) {
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "run %s", id)
	}
	results, err := st.ListResults(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "results of run %s", id)
	}
	summaries, err := st.ListSummaries(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "summaries of run %s", id)
	}
	return &report.Report{
		Run:          *run,
		Results:      results,
		Summaries:    summaries,
		Coefficients: run.Coefficients,
	}, nil
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tLABEL\tR1\tSTATUS\tBLOCKS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t--\t------\t------\t-------")

	for _, r := range runs {
		c := r.Counts()
		blocks := ""
		if len(r.Outcomes) > 0 {
			blocks = fmt.Sprintf("%d/%d", c[model.BlockStatusOK], len(r.Outcomes))
		}

		label := r.Label
		if len(label) > 30 {
			label = label[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			label,
			r.R1Name,
			r.Status,
			blocks,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
