// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

// Package metrics holds the Prometheus collectors of the router. All
// collectors are registered on the default registry at package init and are
// served by the admin /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink kinds used as label values.
const (
	SinkOutput    = "output"
	SinkClient    = "client"
	SinkWebSocket = "websocket"
	SinkMirror    = "mirror"
)

var (
	// Input Metrics
	InputBytesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrouter_input_bytes_received_total",
			Help: "Total bytes read from producers, by input tag",
		},
		[]string{"input"},
	)

	InputProducers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tagrouter_input_producers",
			Help: "Current number of connected producers, by input tag",
		},
		[]string{"input"},
	)

	InputListening = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tagrouter_input_listening",
			Help: "Whether the input listener is bound (1) or not (0)",
		},
		[]string{"input"},
	)

	// Sink Metrics
	SinkBytesForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrouter_sink_bytes_forwarded_total",
			Help: "Total bytes written to sinks, by input tag and sink kind",
		},
		[]string{"input", "kind"},
	)

	SinksAttached = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tagrouter_sinks_attached",
			Help: "Current number of sinks attached to an input",
		},
		[]string{"input", "kind"},
	)

	SinkQueueOverflows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrouter_sink_queue_overflows_total",
			Help: "Sinks disconnected because their outbound queue exceeded the limit",
		},
		[]string{"input", "kind"},
	)

	SinkWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrouter_sink_write_errors_total",
			Help: "Sinks closed after a failed write",
		},
		[]string{"input", "kind"},
	)

	// Output Connection Metrics
	OutputDials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrouter_output_dials_total",
			Help: "Connection attempts to outputs",
		},
		[]string{"output", "result"}, // result: "success", "failure", "rejected"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tagrouter_circuit_breaker_state",
			Help: "Output circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrouter_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Command Protocol Metrics
	CommandSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagrouter_command_sessions",
			Help: "Current number of connected command clients",
		},
	)

	CommandRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrouter_command_requests_total",
			Help: "Command requests handled, by request type and outcome",
		},
		[]string{"request", "outcome"},
	)

	CommandParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrouter_command_parse_errors_total",
			Help: "Client buffers discarded because they could not be parsed",
		},
		[]string{"reason"}, // reason: "syntax", "oversize"
	)

	CommandRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagrouter_command_rate_limited_total",
			Help: "Command requests dropped by the per-session rate limit",
		},
	)

	// Mirror Metrics
	MirrorPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrouter_mirror_publish_errors_total",
			Help: "Failed NATS publishes, by input tag",
		},
		[]string{"input"},
	)

	// Admin API Metrics
	AdminRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagrouter_admin_requests_total",
			Help: "Admin HTTP requests, by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	AdminRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagrouter_admin_request_duration_seconds",
			Help:    "Admin HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Application Info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tagrouter_info",
			Help: "Application information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordRead records one producer read on an input.
func RecordRead(input string, n int) {
	InputBytesReceived.WithLabelValues(input).Add(float64(n))
}

// RecordForward records bytes written to a sink.
func RecordForward(input, kind string, n int) {
	SinkBytesForwarded.WithLabelValues(input, kind).Add(float64(n))
}

// TrackSink adjusts the attached sink gauge.
func TrackSink(input, kind string, attached bool) {
	if attached {
		SinksAttached.WithLabelValues(input, kind).Inc()
	} else {
		SinksAttached.WithLabelValues(input, kind).Dec()
	}
}

// TrackProducer adjusts the connected producer gauge.
func TrackProducer(input string, connected bool) {
	if connected {
		InputProducers.WithLabelValues(input).Inc()
	} else {
		InputProducers.WithLabelValues(input).Dec()
	}
}

// RecordDial records a connection attempt to an output.
func RecordDial(output, result string) {
	OutputDials.WithLabelValues(output, result).Inc()
}

// RecordCommand records a handled command request.
func RecordCommand(request, outcome string) {
	CommandRequests.WithLabelValues(request, outcome).Inc()
}

// RecordAdminRequest records one admin HTTP request.
func RecordAdminRequest(method, route, status string, d time.Duration) {
	AdminRequests.WithLabelValues(method, route, status).Inc()
	AdminRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
