package monitoring

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dqmetrics/internal/config"
)

// CheckResult reports the outcome of one check.
type CheckResult struct {
	Snapshot *Snapshot `json:"snapshot"`
	Alerts   []Alert   `json:"alerts"`
	Sent     int       `json:"sent"`
}

// Checker runs collect, evaluate and send, once or on a cron schedule.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates an alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Check runs a single collection and delivers any triggered alerts.
func (c *Checker) Check(ctx context.Context) (*CheckResult, error) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackHours)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{Snapshot: snap, Alerts: c.alerter.Evaluate(snap)}
	if len(res.Alerts) > 0 {
		res.Sent = c.alerter.SendAlerts(ctx, res.Alerts)
	}
	return res, nil
}

// Run schedules Check with the given cron spec. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context, schedule string) error {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	sched := cron.New()
	_, err := sched.AddFunc(schedule, func() {
		res, err := c.Check(ctx)
		if err != nil {
			log.Error("monitoring: check failed", zap.Error(err))
			return
		}
		log.Info("monitoring: alert check complete",
			zap.Int("columns", len(res.Snapshot.Columns)),
			zap.Int("alerts_triggered", len(res.Alerts)),
			zap.Int("alerts_sent", res.Sent),
		)
	})
	if err != nil {
		return eris.Wrapf(err, "monitoring: parse schedule %q", schedule)
	}

	log.Info("starting alert checker",
		zap.String("schedule", schedule),
		zap.Int("lookback_hours", c.cfg.LookbackHours),
	)
	sched.Start()
	<-ctx.Done()
	<-sched.Stop().Done()
	log.Info("alert checker stopped")
	return nil
}
