package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for the sync engine
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.GaugeVec

	// Sync Engine Metrics
	BatchesProcessed prometheus.CounterVec
	BatchDuration    prometheus.HistogramVec
	TickDuration     prometheus.Histogram
	ResultsUpserted  prometheus.Counter

	// Upstream Metrics
	QuotaWindowUsed prometheus.Gauge
	QuotaDailyUsed  prometheus.Gauge
}

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		// HTTP Metrics
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gruppetto_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gruppetto_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gruppetto_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		// Sync Engine Metrics
		BatchesProcessed: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gruppetto_sync_batches_processed_total",
				Help: "Sync batches processed by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		BatchDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gruppetto_sync_batch_duration_seconds",
				Help:    "Batch processing time in seconds by kind",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"kind"},
		),
		TickDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gruppetto_scheduler_tick_duration_seconds",
				Help:    "Full scheduler tick time in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
		),
		ResultsUpserted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gruppetto_race_results_upserted_total",
				Help: "Race results written by the discovery processor",
			},
		),

		// Upstream Metrics
		QuotaWindowUsed: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gruppetto_upstream_quota_window_used",
				Help: "Most recently observed short-window quota usage",
			},
		),
		QuotaDailyUsed: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gruppetto_upstream_quota_daily_used",
				Help: "Most recently observed daily quota usage",
			},
		),
	}
}
