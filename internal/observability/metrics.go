// Package observability wires the Prometheus registry and exposes it over HTTP.
// Sentry error telemetry lives in the telemetry package.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/firewatch-dev/firewatch/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Reading  *metrics.ReadingMetrics
	Notifier *metrics.NotifierMetrics
	Alert    *metrics.AlertMetrics
	HTTP     *metrics.HTTPMetrics
	MQTT     *metrics.MQTTMetrics
}

// NewMetrics creates a new registry and registers every collector on it,
// together with the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	readingMetrics, err := metrics.NewReadingMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create reading metrics: %w", err)
	}
	notifierMetrics, err := metrics.NewNotifierMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier metrics: %w", err)
	}
	alertMetrics, err := metrics.NewAlertMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert metrics: %w", err)
	}
	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Reading:  readingMetrics,
		Notifier: notifierMetrics,
		Alert:    alertMetrics,
		HTTP:     httpMetrics,
		MQTT:     mqttMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
