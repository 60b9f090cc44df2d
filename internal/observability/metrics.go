package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crowdsense",
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through the detection pipeline",
	})

	FramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crowdsense",
		Name:      "frames_skipped_total",
		Help:      "Total number of captured frames that reused the last snapshot",
	})

	FrameErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crowdsense",
		Name:      "frame_errors_total",
		Help:      "Per-frame recoverable errors by stage",
	}, []string{"stage"})

	ObservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crowdsense",
		Name:      "observations_total",
		Help:      "Total number of person observations after deduplication",
	})

	ActiveTracks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crowdsense",
		Name:      "active_tracks",
		Help:      "Number of live identity tracks",
	})

	CrowdCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "crowdsense",
		Name:      "crowd_count",
		Help:      "Confirmed people in view by gender",
	}, []string{"gender"})

	AdsDisplayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crowdsense",
		Name:      "ads_displayed_total",
		Help:      "Total number of ads selected for display by audience",
	}, []string{"audience"})

	AnalyticsFallback = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crowdsense",
		Name:      "analytics_fallback_total",
		Help:      "Display events recorded in memory because the analytics store failed",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crowdsense",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crowdsense",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crowdsense",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
