package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentry_frames_captured_total",
		Help: "Frames pulled from the capture source",
	})

	CaptureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentry_capture_errors_total",
		Help: "Failed frame captures",
	}, []string{"kind"}) // "transient", "permanent"

	ClassifierErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentry_classifier_errors_total",
		Help: "Frames skipped because the classifier failed",
	})

	Detections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentry_detections_total",
		Help: "Raw classifier detections by normalization outcome",
	}, []string{"outcome"}) // "valid", "dropped"

	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentry_gate_decisions_total",
		Help: "Frames with valid detections by monitoring window decision",
	}, []string{"decision"}) // "armed", "disarmed"

	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentry_alerts_total",
		Help: "Alert cycles by outcome",
	}, []string{"outcome"}) // "authorized", "suppressed", "storage_failed", "dropped"

	ChannelSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentry_channel_sends_total",
		Help: "Notification sends by channel and status",
	}, []string{"channel", "status"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentry_dispatch_duration_seconds",
		Help:    "Time from dispatch start until every channel finished",
		Buckets: prometheus.DefBuckets,
	})

	Armed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentry_armed",
		Help: "1 while inside the monitoring window",
	})
)
