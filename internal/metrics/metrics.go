package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	AppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_buffer_appends_total",
			Help: "Total number of records appended per category",
		},
		[]string{"category", "status"},
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_buffer_records_dropped_total",
			Help: "Records dropped on read because they failed re-validation",
		},
		[]string{"category"},
	)

	// Flush metrics
	FlushCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_flush_cycles_total",
			Help: "Total number of flush cycles executed",
		},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collector_flush_duration_seconds",
			Help:    "Duration of a full flush cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Sink metrics
	SinkDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_sink_dispatch_total",
			Help: "Sink dispatch attempts by sink and outcome",
		},
		[]string{"sink", "status"},
	)

	SinkDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_sink_dispatch_duration_seconds",
			Help:    "Duration of one sink dispatch in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
)
