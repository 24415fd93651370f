// Package observability holds the domain Prometheus collectors and the OpenTelemetry tracer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records store latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campushub_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// MediaUploads counts upload attempts by bucket and outcome.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_media_uploads_total",
		Help: "Media uploads by bucket and outcome",
	}, []string{"bucket", "outcome"})

	// MediaBytesSaved sums bytes removed by image recompression.
	MediaBytesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campushub_media_compression_saved_bytes_total",
		Help: "Bytes saved by recompressing images before upload",
	})

	// MenuParses counts AI menu parse attempts by outcome (ai, fallback reason).
	MenuParses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_menu_parses_total",
		Help: "Mess menu parse attempts by outcome",
	}, []string{"outcome"})

	// ActionRateLimited counts user actions rejected by the in-process limiter.
	ActionRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_action_rate_limited_total",
		Help: "User actions rejected by the action rate limiter",
	}, []string{"action"})

	// RealtimeEvents counts change events applied to live views.
	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_realtime_events_total",
		Help: "Change events applied to live views by table and decision",
	}, []string{"table", "decision"})

	// RealtimePublishErrors counts change events that could not be published.
	RealtimePublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_realtime_publish_errors_total",
		Help: "Change events that failed to publish by table",
	}, []string{"table"})

	// LiveViews is the gauge of open live views by kind.
	LiveViews = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "campushub_live_views",
		Help: "Number of open live views by kind",
	}, []string{"view"})

	// WebSocketBackpressureDrops counts frames dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campushub_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket frames dropped due to backpressure",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
