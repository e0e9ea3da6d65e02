package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dqmetrics/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect metrics history",
	Long:  "Commands for listing stored metric records and plotting column trends.",
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored metric records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := historyFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		records, err := st.ListHistory(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No metrics found.")
			return nil
		}

		format, _ := cmd.Flags().GetString("format")
		return writeMetrics(os.Stdout, format, records)
	},
}

// -- history trend --

var historyTrendCmd = &cobra.Command{
	Use:   "trend <column>",
	Short: "Show completeness and outlier trend for a column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := historyFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		filter.Column = args[0]

		records, err := st.ListHistory(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "history trend")
		}

		points := store.Trend(records, args[0])
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(points)
		}
		if len(points) == 0 {
			fmt.Fprintf(os.Stderr, "No history for column %s.\n", args[0])
			return nil
		}
		formatTrend(os.Stdout, points)
		return nil
	},
}

// -- history columns --

var historyColumnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List every column with stored metrics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cols, err := st.ListColumns(ctx)
		if err != nil {
			return eris.Wrap(err, "history columns")
		}
		for _, c := range cols {
			fmt.Fprintln(os.Stdout, c)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{historyListCmd, historyTrendCmd} {
		c.Flags().String("dataset", "", "filter by dataset name")
		c.Flags().String("run", "", "filter by run ID")
		c.Flags().Duration("since", 0, "only records newer than this (e.g. 24h, 168h)")
		c.Flags().Int("limit", 0, fmt.Sprintf("max records (default %d)", store.DefaultHistoryLimit))
	}
	historyListCmd.Flags().String("column", "", "filter by column name")
	historyListCmd.Flags().String("format", "table", "output format: table, json or csv")
	historyTrendCmd.Flags().Bool("json", false, "print trend points as JSON")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyTrendCmd)
	historyCmd.AddCommand(historyColumnsCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyFilterFromFlags(cmd *cobra.Command) (store.HistoryFilter, error) {
	var f store.HistoryFilter
	f.Dataset, _ = cmd.Flags().GetString("dataset")
	f.RunID, _ = cmd.Flags().GetString("run")
	f.Limit, _ = cmd.Flags().GetInt("limit")
	if cmd.Flags().Lookup("column") != nil {
		f.Column, _ = cmd.Flags().GetString("column")
	}

	since, err := cmd.Flags().GetDuration("since")
	if err != nil {
		return f, eris.Wrap(err, "history: parse --since")
	}
	if since < 0 {
		return f, eris.Errorf("history: --since must be positive, got %s", since)
	}
	if since > 0 {
		f.Since = time.Now().UTC().Add(-since)
	}
	return f, nil
}

// formatTrend writes a column's trend points to out, oldest first.
func formatTrend(out io.Writer, points []store.TrendPoint) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPUTED\tRUN\tCOMPLETE\tADJUSTED\tOUTLIERS")
	for _, p := range points {
		runID := p.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%d\n",
			p.At.Format("2006-01-02 15:04"), runID, p.Completeness, p.AdjustedCompleteness, p.Outliers,
		)
	}
	_ = w.Flush()
}
