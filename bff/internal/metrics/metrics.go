package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analytics stream metrics
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avika_bff_analytics_streams_active",
			Help: "Number of analytics streams currently relaying",
		},
	)

	StreamSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avika_bff_analytics_stream_sessions_total",
			Help: "Total number of analytics stream sessions by outcome",
		},
		[]string{"outcome"},
	)

	StreamFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avika_bff_analytics_stream_frames_total",
			Help: "Total number of frames relayed to browsers",
		},
	)

	StreamSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avika_bff_analytics_stream_skipped_total",
			Help: "Total number of backend messages that could not be encoded",
		},
	)

	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avika_bff_analytics_stream_duration_seconds",
			Help:    "Lifetime of analytics stream sessions in seconds",
			Buckets: []float64{0.1, 1, 10, 60, 300, 900, 3600},
		},
		[]string{"outcome"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avika_bff_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avika_bff_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avika_bff_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"backend"},
	)

	// Lifecycle event publishing
	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avika_bff_event_publish_errors_total",
			Help: "Total number of stream lifecycle events that failed to publish",
		},
	)
)
