package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricRecordsFetched  = "ingest_records_fetched_total"
	MetricRecordsSaved    = "ingest_records_saved_total"
	MetricRecordsUpdated  = "ingest_records_updated_total"
	MetricRecordsSkipped  = "ingest_records_skipped_total"
	MetricRecordsPurged   = "ingest_records_purged_total"
	MetricSourceFailures  = "ingest_source_failures_total"
	MetricRefreshDuration = "ingest_refresh_duration_seconds"
)

// PromMetrics contains Prometheus metrics for the ingestion pipeline.
// All operations are thread-safe.
type PromMetrics struct {
	fetched         prometheus.Counter
	saved           prometheus.Counter
	updated         prometheus.Counter
	skipped         prometheus.Counter
	purged          prometheus.Counter
	sourceFailures  prometheus.Counter
	refreshDuration prometheus.Histogram
}

// NewPromMetrics creates a PromMetrics instance with all collectors
// initialized. The metrics are not registered; call Register.
func NewPromMetrics() *PromMetrics {
	return &PromMetrics{
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsFetched,
			Help: "Total number of raw records fetched from producers",
		}),
		saved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsSaved,
			Help: "Total number of newly inserted catalog records",
		}),
		updated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsUpdated,
			Help: "Total number of catalog records updated in place",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsSkipped,
			Help: "Total number of malformed records skipped at the boundary",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsPurged,
			Help: "Total number of records purged by the retention sweep",
		}),
		sourceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSourceFailures,
			Help: "Total number of producer fetches that failed",
		}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRefreshDuration,
			Help:    "Histogram of full refresh run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *PromMetrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.fetched,
		m.saved,
		m.updated,
		m.skipped,
		m.purged,
		m.sourceFailures,
		m.refreshDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Observe records one completed refresh run.
func (m *PromMetrics) Observe(report *Report, elapsed time.Duration) {
	m.fetched.Add(float64(report.TotalFetched))
	m.saved.Add(float64(report.Saved))
	m.updated.Add(float64(report.Updated))
	m.skipped.Add(float64(report.Skipped))
	m.purged.Add(float64(report.DeletedOld))
	m.sourceFailures.Add(float64(len(report.FailedSources)))
	m.refreshDuration.Observe(elapsed.Seconds())
}
