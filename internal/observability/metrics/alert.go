package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertMetrics tracks alert scans and their per-subscription outcomes.
type AlertMetrics struct {
	scansTotal    *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	outcomesTotal *prometheus.CounterVec
	lastScanTime  prometheus.Gauge
}

// NewAlertMetrics creates and registers the alert scanner metrics.
func NewAlertMetrics(registry *prometheus.Registry) (*AlertMetrics, error) {
	m := &AlertMetrics{
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_scans_total",
			Help: "Total number of alert scans by status",
		}, []string{"status"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alert_scan_duration_seconds",
			Help:    "Time taken for a complete alert scan",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10), // 100ms to ~50s
		}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_subscription_outcomes_total",
			Help: "Per-subscription scan outcomes (quiet, sent, suppressed, failed)",
		}, []string{"outcome"}),
		lastScanTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alert_last_scan_timestamp_seconds",
			Help: "Unix time of the last completed scan",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register alert metrics: %w", err)
	}
	return m, nil
}

func (m *AlertMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.scansTotal, m.scanDuration, m.outcomesTotal, m.lastScanTime}
}

// Describe implements the Collector interface
func (m *AlertMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *AlertMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordScan records a finished scan.
func (m *AlertMetrics) RecordScan(status string, seconds float64, finishedUnix int64) {
	m.scansTotal.WithLabelValues(status).Inc()
	m.scanDuration.Observe(seconds)
	m.lastScanTime.Set(float64(finishedUnix))
}

// RecordOutcome records the outcome of one subscription evaluation.
func (m *AlertMetrics) RecordOutcome(outcome string) {
	m.outcomesTotal.WithLabelValues(outcome).Inc()
}
