package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dqmetrics/internal/monitoring"
)

var (
	monitorLookback int
	monitorSchedule string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Check metrics history for quality regressions",
	Long: `Collects per-column trends over the lookback window and raises
completeness_drop, completeness_floor and outlier_surge alerts. Alerts are
posted to monitoring.webhook_url when configured.

With --schedule the check repeats on a cron spec until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mc := cfg.Monitoring
		if monitorLookback > 0 {
			mc.LookbackHours = monitorLookback
		}
		schedule := monitorSchedule
		if schedule == "" {
			schedule = mc.Schedule
		}

		checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(mc), mc)
		if schedule != "" {
			return checker.Run(ctx, schedule)
		}

		res, err := checker.Check(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("monitor check complete",
			zap.Int("columns", len(res.Snapshot.Columns)),
			zap.Int("alerts", len(res.Alerts)),
			zap.Int("sent", res.Sent),
		)

		if len(res.Alerts) == 0 {
			fmt.Fprintf(os.Stderr, "No alerts across %d column(s) in the last %dh.\n",
				len(res.Snapshot.Columns), mc.LookbackHours)
			return nil
		}
		formatAlerts(os.Stdout, res.Alerts)
		return nil
	},
}

func init() {
	monitorCmd.Flags().IntVar(&monitorLookback, "lookback", 0, "lookback window in hours (default from config)")
	monitorCmd.Flags().StringVar(&monitorSchedule, "schedule", "", `cron spec to repeat the check, e.g. "@every 1h"`)
	rootCmd.AddCommand(monitorCmd)
}

// formatAlerts writes triggered alerts to out.
func formatAlerts(out io.Writer, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TYPE\tSEVERITY\tDATASET\tCOLUMN\tMESSAGE")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.Type, a.Severity, a.Dataset, a.Column, a.Message)
	}
	_ = w.Flush()
}
