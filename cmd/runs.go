package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/entailgraph/internal/model"
	"github.com/sells-group/entailgraph/internal/report"
	"github.com/sells-group/entailgraph/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect experiment run history",
	Long:  "Commands for listing runs and viewing their results and skipped items.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiment runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		name, _ := cmd.Flags().GetString("name")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Name:   name,
			Limit:  limit,
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
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs results --

var runsResultsCmd = &cobra.Command{
	Use:   "results <run-id>",
	Short: "Print the results table of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		results, err := st.ListResults(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs results")
		}
		if len(results) == 0 {
			fmt.Fprintln(os.Stderr, "No results recorded.")
			return nil
		}

		if path, _ := cmd.Flags().GetString("export"); path != "" {
			return report.Export(path, results)
		}
		return report.WriteTable(os.Stdout, results)
	},
}

// -- runs skips --

var runsSkipsCmd = &cobra.Command{
	Use:   "skips <run-id>",
	Short: "List the items a run skipped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		skips, err := st.ListSkips(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs skips")
		}
		if len(skips) == 0 {
			fmt.Fprintln(os.Stderr, "No skipped items.")
			return nil
		}

		formatSkips(os.Stdout, skips)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, building, evaluating, complete, failed)")
	runsListCmd.Flags().String("name", "", "filter by experiment name")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsResultsCmd.Flags().String("export", "", "write the table to a .csv or .xlsx file instead of stdout")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsResultsCmd)
	runsCmd.AddCommand(runsSkipsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a table of runs to w.
func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tORACLE\tSTATUS\tUNITS\tBEST F1\tCREATED")
	fmt.Fprintln(tw, "--\t----\t------\t------\t-----\t-------\t-------")

	for _, r := range runs {
		units, best := "-", "-"
		if r.Summary != nil {
			units = fmt.Sprintf("%d", r.Summary.Units)
			if r.Status == model.RunStatusComplete {
				best = fmt.Sprintf("%.4f", r.Summary.BestF1)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID),
			r.Name,
			r.Oracle,
			r.Status,
			units,
			best,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
}

// formatSkips writes a table of skipped items to w.
func formatSkips(w io.Writer, skips []model.SkippedItem) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tSTAGE\tTYPE\tREASON")
	fmt.Fprintln(tw, "----\t-----\t----\t------")
	for _, s := range skips {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Item, s.Stage, s.ErrorType, truncate(s.Reason, 80))
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
