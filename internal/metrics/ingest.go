// Package metrics exposes ingest run statistics in the Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ephysdb"

const (
	ResultIngested = "ingested"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
)

// IngestMetrics contains Prometheus metrics for ingest runs
type IngestMetrics struct {
	registry *prometheus.Registry

	sessionsTotal     *prometheus.CounterVec
	rowsWrittenTotal  *prometheus.CounterVec
	sessionDuration   *prometheus.HistogramVec
	lastRunTimestamp  prometheus.Gauge
	lastRunSuccessful prometheus.Gauge
}

// NewIngestMetrics creates and registers ingest metrics on registry
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{
		registry: registry,
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Sessions processed, by result.",
		}, []string{"result"}),
		rowsWrittenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Records written, by table.",
		}, []string{"table"}),
		sessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Time spent processing one session, by result.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last ingest run completed.",
		}),
		lastRunSuccessful: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_successful",
			Help:      "1 if the last ingest run had no failed sessions.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.sessionsTotal,
		m.rowsWrittenTotal,
		m.sessionDuration,
		m.lastRunTimestamp,
		m.lastRunSuccessful,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *IngestMetrics) RecordSession(result string, duration time.Duration) {
	m.sessionsTotal.WithLabelValues(result).Inc()
	m.sessionDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *IngestMetrics) RecordRows(rows map[string]int) {
	for table, n := range rows {
		m.rowsWrittenTotal.WithLabelValues(table).Add(float64(n))
	}
}

func (m *IngestMetrics) RecordRun(completed time.Time, failed int) {
	m.lastRunTimestamp.Set(float64(completed.Unix()))
	if failed == 0 {
		m.lastRunSuccessful.Set(1)
	} else {
		m.lastRunSuccessful.Set(0)
	}
}

// WriteTextfile writes every registered metric to path, for pickup by the
// node_exporter textfile collector.
func (m *IngestMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
