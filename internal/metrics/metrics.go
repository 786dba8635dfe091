// Package metrics holds the Prometheus collectors for cache, pipeline and scheduler activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "worldmonitor"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit, miss, stale, corrupt).",
		},
		[]string{"result"},
	)

	cacheWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "writes_total",
			Help:      "Cache writes by outcome.",
		},
		[]string{"success"},
	)

	strategyKeys = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "strategy_keys_total",
			Help:      "Keys resolved per fallback strategy.",
		},
		[]string{"strategy"},
	)

	strategyOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "strategy_calls_total",
			Help:      "Fallback strategy invocations by outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Total number of refresh job runs.",
		},
		[]string{"job", "success"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Duration of refresh job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"job"},
	)
)

func init() {
	Registry.MustRegister(
		cacheLookups,
		cacheWrites,
		strategyKeys,
		strategyOutcomes,
		jobRuns,
		jobDuration,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordCacheLookup counts one cache read.
func RecordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheWrite counts one cache write.
func RecordCacheWrite(success bool) {
	cacheWrites.WithLabelValues(boolLabel(success)).Inc()
}

// RecordStrategy counts one strategy call and the keys it resolved.
func RecordStrategy(strategy, outcome string, resolved int) {
	strategyOutcomes.WithLabelValues(strategy, outcome).Inc()
	if resolved > 0 {
		strategyKeys.WithLabelValues(strategy).Add(float64(resolved))
	}
}

// RecordJobRun tracks one scheduler iteration.
func RecordJobRun(job string, success bool, duration time.Duration) {
	jobRuns.WithLabelValues(job, boolLabel(success)).Inc()
	jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
