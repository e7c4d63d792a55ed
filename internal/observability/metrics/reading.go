package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ReadingMetrics tracks reading store queries. It implements Recorder.
type ReadingMetrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryErrors   *prometheus.CounterVec
	clientBuilds  prometheus.Counter
}

// NewReadingMetrics creates and registers the reading store metrics.
func NewReadingMetrics(registry *prometheus.Registry) (*ReadingMetrics, error) {
	m := &ReadingMetrics{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reading_store_queries_total",
			Help: "Total number of reading store queries by operation and status",
		}, []string{"operation", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reading_store_query_duration_seconds",
			Help:    "Time taken by reading store queries",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~2s
		}, []string{"operation"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reading_store_errors_total",
			Help: "Total number of reading store errors by operation and category",
		}, []string{"operation", "error_type"}),
		clientBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reading_store_client_builds_total",
			Help: "Number of times a store client was (re)built after its cache entry expired",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register reading metrics: %w", err)
	}
	return m, nil
}

func (m *ReadingMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.queriesTotal, m.queryDuration, m.queryErrors, m.clientBuilds}
}

// Describe implements the Collector interface
func (m *ReadingMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ReadingMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *ReadingMetrics) RecordOperation(operation, status string) {
	m.queriesTotal.WithLabelValues(operation, status).Inc()
}

func (m *ReadingMetrics) RecordDuration(operation string, seconds float64) {
	m.queryDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *ReadingMetrics) RecordError(operation, errorType string) {
	m.queryErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordClientBuild counts a store client construction.
func (m *ReadingMetrics) RecordClientBuild() {
	m.clientBuilds.Inc()
}
