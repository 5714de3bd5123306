package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertd_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Sampler metrics
	SamplerCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertd_sampler_cycles_total",
			Help: "Total number of completed sampling cycles",
		},
	)

	SamplerChannelErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertd_sampler_channel_errors_total",
			Help: "Total number of per-channel evaluate/create failures absorbed by the sampler",
		},
		[]string{"channel"},
	)

	ConfigReloadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertd_config_reload_failures_total",
			Help: "Total number of threshold config reads that failed and kept previous values",
		},
	)

	// Pipeline metrics
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertd_alerts_created_total",
			Help: "Total number of alerts persisted and broadcast",
		},
		[]string{"channel"},
	)

	AlertsAcknowledgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertd_alerts_acknowledged_total",
			Help: "Total number of acknowledge operations that succeeded",
		},
	)

	// Hub metrics
	HubSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertd_hub_subscribers",
			Help: "Current number of live broadcast subscribers",
		},
	)

	HubBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertd_hub_broadcasts_total",
			Help: "Total number of alerts published to the hub",
		},
	)

	HubEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertd_hub_evicted_subscribers_total",
			Help: "Total number of subscribers evicted for a full send buffer",
		},
	)

	// Export metrics
	ExportPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertd_export_publish_total",
			Help: "Total number of alerts published to the export topic",
		},
		[]string{"status"}, // status: success, failed, dropped
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertd_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
