package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "envmon_readings_received_total",
			Help: "Total raw readings accepted from the sensor feed",
		},
	)

	ReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmon_readings_rejected_total",
			Help: "Total sensor feed messages that could not be decoded",
		},
		[]string{"source", "reason"},
	)

	QualityFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmon_reading_quality_flags_total",
			Help: "Total implausible channel values seen in raw readings",
		},
		[]string{"flag"},
	)

	BatchesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "envmon_batches_flushed_total",
			Help: "Total aggregation intervals flushed",
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "envmon_batch_readings",
			Help:    "Raw readings per aggregation interval",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		},
	)

	EmptyChannels = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmon_empty_channel_batches_total",
			Help: "Intervals in which a channel had no readings and aggregated to zero",
		},
		[]string{"channel"},
	)

	Anomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmon_anomalies_total",
			Help: "Total anomalous intervals per channel",
		},
		[]string{"channel", "policy"},
	)

	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmon_events_total",
			Help: "Total emitted events",
		},
		[]string{"event"},
	)

	UVRunLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "envmon_uv_run_length",
			Help: "Consecutive intervals with smoothed UV at or above the on threshold",
		},
	)

	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmon_sink_writes_total",
			Help: "Total point writes per sink",
		},
		[]string{"sink", "status"},
	)

	SinkLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "envmon_sink_write_latency_seconds",
			Help:    "Point write latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	SinkDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "envmon_sink_dropped_total",
			Help: "Points dropped because the asynchronous sink queue was full",
		},
	)

	SourceReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envmon_source_reconnects_total",
			Help: "Reading source reconnect attempts",
		},
		[]string{"source", "status"},
	)
)
