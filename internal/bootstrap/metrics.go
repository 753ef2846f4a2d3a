package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resourcesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "obstack",
			Subsystem: "bootstrap",
			Name:      "resources_total",
			Help:      "Resources processed, by terminal state",
		},
		[]string{"state"},
	)

	applyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "obstack",
			Subsystem: "bootstrap",
			Name:      "apply_duration_seconds",
			Help:      "Duration of individual apply calls",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	readinessWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "obstack",
			Subsystem: "bootstrap",
			Name:      "readiness_wait_seconds",
			Help:      "Time spent waiting on readiness barriers",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~400s
		},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "obstack",
			Subsystem: "bootstrap",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of full bootstrap runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17m
		},
	)
)
