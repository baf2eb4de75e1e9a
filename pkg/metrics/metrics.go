// Package metrics holds the Prometheus counters, histograms, and gauges
// spotlake exposes on /metrics, covering the collector, aggregator, and
// summary builder stages of the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the full set of pipeline instrumentation.
type Metrics struct {
	SpotsCollected  prometheus.Counter
	CollectErrors   *prometheus.CounterVec // labels: kind={FETCH_ERROR,PARSE_ERROR,STORAGE_ERROR}
	CollectDuration prometheus.Histogram

	AggregationsRun     *prometheus.CounterVec   // labels: level={hourly,daily,monthly}
	AggregationErrors   *prometheus.CounterVec   // labels: level, kind
	AggregationDuration *prometheus.HistogramVec // labels: level
	RollupSpotCount     *prometheus.HistogramVec // labels: level

	SummaryRuns     prometheus.Counter
	SummaryErrors   prometheus.Counter
	SummaryDuration prometheus.Histogram

	ManifestUpdateErrors prometheus.Counter

	SchedulerJobRetries *prometheus.CounterVec // labels: job
}

// New creates and registers spotlake's metrics with the default Prometheus
// registry.
func New() *Metrics {
	m := &Metrics{
		SpotsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotlake",
			Name:      "spots_collected_total",
			Help:      "Total normalized spots written to raw storage by the collector.",
		}),
		CollectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotlake",
			Name:      "collect_errors_total",
			Help:      "Collector failures by kind.",
		}, []string{"kind"}),
		CollectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spotlake",
			Name:      "collect_duration_seconds",
			Help:      "Duration of a single collection tick.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		AggregationsRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotlake",
			Name:      "aggregations_run_total",
			Help:      "Completed aggregation runs by level.",
		}, []string{"level"}),
		AggregationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotlake",
			Name:      "aggregation_errors_total",
			Help:      "Aggregation failures by level and kind.",
		}, []string{"level", "kind"}),
		AggregationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spotlake",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of an aggregation run by level.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"level"}),
		RollupSpotCount: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spotlake",
			Name:      "rollup_spot_count",
			Help:      "total_spots recorded in a published rollup, by level.",
			Buckets:   []float64{0, 10, 50, 100, 500, 1000, 5000, 20000},
		}, []string{"level"}),
		SummaryRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotlake",
			Name:      "summary_runs_total",
			Help:      "Completed summary builder runs.",
		}),
		SummaryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotlake",
			Name:      "summary_errors_total",
			Help:      "Summary builder runs that recorded at least one report failure.",
		}),
		SummaryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spotlake",
			Name:      "summary_duration_seconds",
			Help:      "Duration of a summary builder run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ManifestUpdateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotlake",
			Name:      "manifest_update_errors_total",
			Help:      "Manifest publish failures logged but tolerated by the aggregator.",
		}),
		SchedulerJobRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotlake",
			Name:      "scheduler_job_retries_total",
			Help:      "Retry attempts taken by the scheduler, by job name.",
		}, []string{"job"}),
	}

	prometheus.MustRegister(
		m.SpotsCollected,
		m.CollectErrors,
		m.CollectDuration,
		m.AggregationsRun,
		m.AggregationErrors,
		m.AggregationDuration,
		m.RollupSpotCount,
		m.SummaryRuns,
		m.SummaryErrors,
		m.SummaryDuration,
		m.ManifestUpdateErrors,
		m.SchedulerJobRetries,
	)

	return m
}

// NewForTesting creates Metrics with collectors that are never registered
// against the default registry, avoiding "duplicate metrics collector
// registration attempted" panics when called from multiple tests.
func NewForTesting() *Metrics {
	return &Metrics{
		SpotsCollected:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "spotlake", Name: "spots_collected_total"}),
		CollectErrors:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "spotlake", Name: "collect_errors_total"}, []string{"kind"}),
		CollectDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "spotlake", Name: "collect_duration_seconds"}),
		AggregationsRun:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "spotlake", Name: "aggregations_run_total"}, []string{"level"}),
		AggregationErrors:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "spotlake", Name: "aggregation_errors_total"}, []string{"level", "kind"}),
		AggregationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "spotlake", Name: "aggregation_duration_seconds"}, []string{"level"}),
		RollupSpotCount:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "spotlake", Name: "rollup_spot_count"}, []string{"level"}),
		SummaryRuns:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "spotlake", Name: "summary_runs_total"}),
		SummaryErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "spotlake", Name: "summary_errors_total"}),
		SummaryDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "spotlake", Name: "summary_duration_seconds"}),
		ManifestUpdateErrors: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "spotlake", Name: "manifest_update_errors_total"}),
		SchedulerJobRetries:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "spotlake", Name: "scheduler_job_retries_total"}, []string{"job"}),
	}
}
