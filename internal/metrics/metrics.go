// Package metrics holds the Prometheus collectors for a collection run.
// A batch job exits right after its cycle, so metrics are written to a
// node_exporter textfile instead of being scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry owns a private Prometheus registry and the collectors updated
// during a cycle.
type Registry struct {
	reg            *prometheus.Registry
	Quotes         *prometheus.CounterVec // by route label and status
	FetchAttempts  *prometheus.CounterVec // by source
	Alerts         prometheus.Counter
	AppendFailures prometheus.Counter
	ChartsRendered prometheus.Counter
	Notifications  *prometheus.CounterVec // by channel and result
	CycleSeconds   prometheus.Gauge
	LastSuccess    prometheus.Gauge
}

// NewRegistry creates and registers every collector.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farewatch_quotes_total",
		Help: "Normalized price observations by route and status.",
	}, []string{"route", "status"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farewatch_fetch_attempts_total",
		Help: "Price source calls, including retries.",
	}, []string{"source"})
	alerts := prometheus.NewCounter(prometheus.CounterOpts{Name: "farewatch_alerts_total", Help: "Alert-worthy price changes."})
	appendFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "farewatch_history_append_failures_total", Help: "Records that could not be persisted."})
	charts := prometheus.NewCounter(prometheus.CounterOpts{Name: "farewatch_charts_rendered_total", Help: "Charts written."})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "farewatch_notifications_total",
		Help: "Notification deliveries by channel and result.",
	}, []string{"channel", "result"})
	cycle := prometheus.NewGauge(prometheus.GaugeOpts{Name: "farewatch_cycle_duration_seconds", Help: "Duration of the last collection cycle."})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{Name: "farewatch_last_success_timestamp_seconds", Help: "Unix time the last cycle completed."})

	r.MustRegister(quotes, attempts, alerts, appendFailures, charts, notifications, cycle, lastSuccess)
	return &Registry{
		reg:            r,
		Quotes:         quotes,
		FetchAttempts:  attempts,
		Alerts:         alerts,
		AppendFailures: appendFailures,
		ChartsRendered: charts,
		Notifications:  notifications,
		CycleSeconds:   cycle,
		LastSuccess:    lastSuccess,
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// NotificationResult records one delivery outcome.
func (r *Registry) NotificationResult(channel string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.Notifications.WithLabelValues(channel, result).Inc()
}

// WriteTextfile writes all metrics to path atomically. An empty path is a no-op.
func (r *Registry) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
