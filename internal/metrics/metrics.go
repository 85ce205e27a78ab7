package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soundwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Acquisition metrics
	FramesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soundwatch_frames_received_total",
			Help: "Total number of samples delivered by the acquisition source",
		},
	)

	FramesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soundwatch_frames_dropped_total",
			Help: "Total number of samples dropped because the frame queue was full",
		},
	)

	WindowsEmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soundwatch_windows_emitted_total",
			Help: "Total number of full windows cut by the chunk buffer",
		},
	)

	// Classification metrics
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundwatch_classifications_total",
			Help: "Total number of classified windows by label",
		},
		[]string{"label"},
	)

	ClassificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soundwatch_classification_duration_seconds",
			Help:    "Time taken to classify one window",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	ClassificationConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soundwatch_classification_confidence",
			Help:    "Confidence reported by the classifier",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"label"},
	)

	// Alert decision metrics
	AlertDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundwatch_alert_decisions_total",
			Help: "Alert controller outcomes",
		},
		[]string{"outcome"}, // outcome: gated_out, notify, log, log_suppressed, notify_suppressed
	)

	// Dispatch metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundwatch_dispatch_total",
			Help: "Backend invocations by kind, backend and status",
		},
		[]string{"kind", "backend", "status"}, // status: success, failed
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soundwatch_dispatch_duration_seconds",
			Help:    "Time taken by a single backend invocation",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind", "backend"},
	)

	DispatchQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundwatch_dispatch_queue_size",
			Help: "Current number of queued dispatch tasks per pool",
		},
		[]string{"pool"},
	)

	DispatchQueueCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundwatch_dispatch_queue_capacity",
			Help: "Capacity of the dispatch queue per pool",
		},
		[]string{"pool"},
	)

	DispatchDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundwatch_dispatch_dropped_total",
			Help: "Total number of dispatch tasks dropped because the queue was full or closed",
		},
		[]string{"pool"},
	)

	// Kafka producer metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundwatch_kafka_publish_total",
			Help: "Total number of messages published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soundwatch_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soundwatch_kafka_publish_duration_seconds",
			Help:    "Kafka publish duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	KafkaBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soundwatch_kafka_bytes_written_total",
			Help: "Total bytes written to Kafka",
		},
	)

	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "soundwatch_sessions_active",
			Help: "1 while a monitoring session is running",
		},
	)

	SessionsEndedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundwatch_sessions_ended_total",
			Help: "Monitoring sessions ended by reason",
		},
		[]string{"reason"}, // reason: stopped, source_closed, acquisition_error
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundwatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
