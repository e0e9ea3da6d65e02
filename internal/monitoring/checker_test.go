package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dqmetrics/internal/model"
)

func TestChecker_Check(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ms := &mockStore{records: []model.MetricRecord{
		rec("orders", "amount", 2, 100, 0),
		rec("orders", "amount", 1, 60, 0),
	}}

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	c := NewChecker(newTestCollector(ms), NewAlerter(cfg), cfg)

	res, err := c.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Snapshot.Columns, 1)
	// Drop of 40 and latest below floor.
	assert.Len(t, res.Alerts, 2)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, int32(2), hits.Load())
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := testMonitoringConfig()
	c := NewChecker(newTestCollector(&mockStore{listErr: errors.New("boom")}), NewAlerter(cfg), cfg)

	_, err := c.Check(context.Background())
	require.Error(t, err)
}

func TestChecker_RunBadSchedule(t *testing.T) {
	cfg := testMonitoringConfig()
	c := NewChecker(newTestCollector(&mockStore{}), NewAlerter(cfg), cfg)

	err := c.Run(context.Background(), "not a schedule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse schedule")
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := testMonitoringConfig()
	c := NewChecker(newTestCollector(&mockStore{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, "@every 1h") }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("checker did not stop after context cancellation")
	}
}
