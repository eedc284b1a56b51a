// Package metrics provides Prometheus metrics for fare-guardian.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fg"

// Scan metrics
var (
	// ScansTotal counts scans by result (ok, interrupted, failed).
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of alert scans",
		},
		[]string{"result"},
	)

	// ScanDuration tracks how long a full scan takes.
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Alert scan duration in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// ScanInProgress is 1 while a scan is running.
	ScanInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_in_progress",
			Help:      "Whether an alert scan is currently running",
		},
	)

	// ScanTicksSkipped counts ticks dropped because a scan was still running.
	ScanTicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_ticks_skipped_total",
			Help:      "Scheduler ticks skipped because a scan was in progress",
		},
	)
)

// Alert metrics
var (
	// AlertEvaluationsTotal counts per-alert evaluations by outcome.
	AlertEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_evaluations_total",
			Help:      "Total alert evaluations by outcome",
		},
		[]string{"outcome"},
	)

	// NotificationsTotal counts notification attempts per channel.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total price alert notifications by channel and result",
		},
		[]string{"channel", "result"},
	)

	// ProviderRequestsTotal counts price searches per provider.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total price provider searches by provider and result",
		},
		[]string{"provider", "result"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result maps an error to the "ok"/"error" label used across counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
