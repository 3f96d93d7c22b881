// Package telemetry provides application-level observability for logrelay.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP listener started by main.go:
//
//	GET http://<host>:<LRL_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is deliberately not served by the Gin
// router so the scrape path stays off the admin API address.
//
// # Metric Groups
//
//   - Audit trail counters (appends, append failures, evictions, rotations)
//   - Log shipper counters and buffer gauge (flushes, flush failures, shipped lines)
//   - HTTP request counters and latency histograms for the admin API,
//     labelled by route template rather than raw URL to keep cardinality bounded
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Audit trail metrics.
//
// AuditRecordsEvicted counts records dropped solely because the trail exceeded
// its retention cap; AuditRecordsPruned counts records removed by age-based
// rotation. The two are separate because eviction indicates write volume while
// rotation is routine housekeeping.
var (
	AuditRecordsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_records_appended_total",
		Help: "Total number of audit records successfully appended to the trail.",
	})

	AuditAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_append_failures_total",
		Help: "Total number of audit appends that failed at the storage layer and were dropped.",
	})

	AuditRecordsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_records_evicted_total",
		Help: "Total number of audit records evicted because the trail exceeded its retention cap.",
	})

	AuditRecordsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_records_pruned_total",
		Help: "Total number of audit records removed by age-based rotation.",
	})
)

// Log shipper metrics.
//
// ShipperBufferedLines tracks the current pending-buffer depth; a persistently
// high value means flushes are not keeping up with log volume. Failed flushes
// drop their batch, so ShipperFlushFailures directly measures lost lines
// alongside ShipperLinesShipped.
var (
	ShipperFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "log_shipper_flushes_total",
		Help: "Total number of flush cycles that delivered a batch to the push endpoint.",
	})

	ShipperFlushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "log_shipper_flush_failures_total",
		Help: "Total number of flush cycles that failed; the batch is discarded, not retried.",
	})

	ShipperLinesShipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "log_shipper_lines_shipped_total",
		Help: "Total number of log lines delivered to the push endpoint.",
	})

	ShipperBufferedLines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "log_shipper_buffered_lines",
		Help: "Number of log lines currently buffered awaiting the next flush.",
	})
)

// HTTP metrics for the admin API — labelled by method, route template, and
// status code. The path label holds the Gin route template (e.g.
// /api/v1/audit/actors/:id), not the raw URL, to prevent unbounded label
// cardinality from user-supplied path segments.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)
