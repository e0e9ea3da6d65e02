package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	computationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dqmetrics_computations_total",
		Help: "Metric computations by outcome.",
	}, []string{"status"})

	columnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dqmetrics_columns_total",
		Help: "Columns scored across all computations.",
	})

	computeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dqmetrics_compute_seconds",
		Help:    "Time spent computing metrics for one table.",
		Buckets: prometheus.DefBuckets,
	})
)
