package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensor_http_requests_total",
			Help: "Total HTTP requests served by the listing gateway",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tensor_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	Handshakes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensor_ws_handshakes_total",
			Help: "WebSocket handshakes by result",
		},
		[]string{"result"}, // "accepted", "missing_token", "invalid_token", "error", "shutting_down"
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tensor_ws_connections_active",
			Help: "Currently open WebSocket connections",
		},
	)

	ProtocolViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tensor_protocol_violations_total",
			Help: "Connections terminated for malformed frames",
		},
	)

	// Relay metrics
	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tensor_messages_relayed_total",
			Help: "Client messages broadcast to the room",
		},
	)

	DeliveriesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensor_deliveries_dropped_total",
			Help: "Per-recipient deliveries that were dropped",
		},
		[]string{"reason"}, // "full", "closed", "detached"
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tensor_rate_limit_hits_total",
			Help: "Inbound frames dropped by the per-connection rate limit",
		},
	)

	// Coordinator metrics
	CoordinatorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tensor_coordinator_requests_total",
			Help: "Requests processed by the state coordinator",
		},
		[]string{"kind"},
	)
)
