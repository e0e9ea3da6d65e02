package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dqmetrics/internal/config"
	"github.com/sells-group/dqmetrics/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertCompletenessDrop  AlertType = "completeness_drop"
	AlertCompletenessFloor AlertType = "completeness_floor"
	AlertOutlierSurge      AlertType = "outlier_surge"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Dataset   string         `json:"dataset,omitempty"`
	Column    string         `json:"column"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
}

// NewAlerter creates a new Alerter with the given monitoring config.
// Webhook posts are throttled to AlertRatePerSec; zero disables throttling.
// Each post is tried up to WebhookAttempts times on transient failures.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	limit := rate.Inf
	if cfg.AlertRatePerSec > 0 {
		limit = rate.Limit(cfg.AlertRatePerSec)
	}
	retry := resilience.DefaultPolicy()
	if cfg.WebhookAttempts > 0 {
		retry.Attempts = cfg.WebhookAttempts
	}
	retry.OnRetry = resilience.LogRetry("alert_webhook")
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		retry:   retry,
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, ct := range snap.Columns {
		latest := ct.Latest

		if ct.Previous != nil && ct.CompletenessDelta < -a.cfg.CompletenessDropThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertCompletenessDrop,
				Severity: "high",
				Dataset:  ct.Dataset,
				Column:   ct.Column,
				Message: fmt.Sprintf(
					"Completeness of %s dropped %.1f points (%.1f%% -> %.1f%%), threshold %.1f",
					ct.Column, -ct.CompletenessDelta, ct.Previous.CompletenessScore,
					latest.CompletenessScore, a.cfg.CompletenessDropThreshold,
				),
				Details: map[string]any{
					"previous":  ct.Previous.CompletenessScore,
					"latest":    latest.CompletenessScore,
					"delta":     ct.CompletenessDelta,
					"threshold": a.cfg.CompletenessDropThreshold,
					"run_id":    latest.RunID,
				},
				Timestamp: now,
			})
		}

		if latest.CompletenessScore < a.cfg.CompletenessFloor {
			alerts = append(alerts, Alert{
				Type:     AlertCompletenessFloor,
				Severity: "medium",
				Dataset:  ct.Dataset,
				Column:   ct.Column,
				Message: fmt.Sprintf(
					"Completeness of %s is %.1f%%, below floor %.1f%%",
					ct.Column, latest.CompletenessScore, a.cfg.CompletenessFloor,
				),
				Details: map[string]any{
					"latest": latest.CompletenessScore,
					"floor":  a.cfg.CompletenessFloor,
					"run_id": latest.RunID,
				},
				Timestamp: now,
			})
		}

		if ct.Previous != nil && ct.OutlierDelta > a.cfg.OutlierSurgeThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertOutlierSurge,
				Severity: "medium",
				Dataset:  ct.Dataset,
				Column:   ct.Column,
				Message: fmt.Sprintf(
					"Outliers in %s rose by %d (%d -> %d) in last %dh",
					ct.Column, ct.OutlierDelta, ct.Previous.OutliersCount,
					latest.OutliersCount, snap.LookbackHours,
				),
				Details: map[string]any{
					"previous":  ct.Previous.OutliersCount,
					"latest":    latest.OutliersCount,
					"threshold": a.cfg.OutlierSurgeThreshold,
					"run_id":    latest.RunID,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.limiter.Wait(ctx); err != nil {
			zap.L().Warn("monitoring: alert delivery interrupted",
				zap.Int("remaining", len(alerts)-sent),
				zap.Error(err),
			)
			break
		}
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.String("column", alert.Column),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("column", alert.Column),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return &resilience.StatusError{URL: a.cfg.WebhookURL, StatusCode: resp.StatusCode}
	}
	return nil
}
