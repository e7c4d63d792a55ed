package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// NotifierMetrics contains Prometheus metrics for SMS delivery.
type NotifierMetrics struct {
	deliveriesTotal  *prometheus.CounterVec   // by provider, status
	deliveryDuration *prometheus.HistogramVec // by provider
	deliveryErrors   *prometheus.CounterVec   // by provider, error_type
	rateLimited      *prometheus.CounterVec   // by provider
}

// NewNotifierMetrics creates and registers the notifier metrics.
func NewNotifierMetrics(registry *prometheus.Registry) (*NotifierMetrics, error) {
	m := &NotifierMetrics{
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_deliveries_total",
			Help: "Total number of message delivery attempts by provider and status",
		}, []string{"provider", "status"}),
		deliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notifier_delivery_duration_seconds",
			Help:    "Time taken for a single delivery attempt",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~20s
		}, []string{"provider"}),
		deliveryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_delivery_errors_total",
			Help: "Total number of delivery errors by provider and error category",
		}, []string{"provider", "error_type"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_rate_limited_total",
			Help: "Sends that had to wait for or were refused by the rate limiter",
		}, []string{"provider"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notifier metrics: %w", err)
	}
	return m, nil
}

func (m *NotifierMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.deliveriesTotal, m.deliveryDuration, m.deliveryErrors, m.rateLimited}
}

// Describe implements the Collector interface
func (m *NotifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *NotifierMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordDelivery records one delivery attempt.
func (m *NotifierMetrics) RecordDelivery(provider, status string, seconds float64) {
	m.deliveriesTotal.WithLabelValues(provider, status).Inc()
	m.deliveryDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordDeliveryError records a failed delivery by error category.
func (m *NotifierMetrics) RecordDeliveryError(provider, errorType string) {
	m.deliveryErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordRateLimited records a send held back by the limiter.
func (m *NotifierMetrics) RecordRateLimited(provider string) {
	m.rateLimited.WithLabelValues(provider).Inc()
}
