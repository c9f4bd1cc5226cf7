// Package observability provides Prometheus metrics for the relay.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lantern"

// StreamingMetrics holds the Prometheus collectors for streaming chat
// operations. Initialize once at startup via NewStreamingMetrics.
type StreamingMetrics struct {
	// RequestsTotal counts relay requests by endpoint and terminal status.
	// Labels: endpoint (chat, chat_sync), status (success, error, cancelled)
	RequestsTotal *prometheus.CounterVec

	// FirstFragmentSeconds measures latency from request start to the first
	// relayed fragment.
	FirstFragmentSeconds prometheus.Histogram

	// StreamDurationSeconds measures total stream duration by status.
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveStreams gauges currently open SSE streams.
	ActiveStreams prometheus.Gauge
}

// NewStreamingMetrics registers the streaming collectors on the given
// registerer (use prometheus.DefaultRegisterer in main).
func NewStreamingMetrics(reg prometheus.Registerer) *StreamingMetrics {
	factory := promauto.With(reg)

	return &StreamingMetrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "requests_total",
			Help:      "Relay requests by endpoint and terminal status.",
		}, []string{"endpoint", "status"}),

		FirstFragmentSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "first_fragment_seconds",
			Help:      "Latency from request start to first relayed fragment.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),

		StreamDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "duration_seconds",
			Help:      "Total stream duration by terminal status.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"status"}),

		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "streaming",
			Name:      "active_streams",
			Help:      "Currently open SSE streams.",
		}),
	}
}
