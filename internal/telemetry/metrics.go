package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acquirer",
		Name:      "gateway_requests_total",
		Help:      "Acquirer operations by kind and outcome.",
	}, []string{"operation", "outcome"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "acquirer",
		Name:      "gateway_request_duration_seconds",
		Help:      "Round-trip latency of acquirer operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acquirer",
		Name:      "order_transitions_total",
		Help:      "Committed order status transitions.",
	}, []string{"from", "to", "source"})

	Callbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acquirer",
		Name:      "callbacks_total",
		Help:      "Asynchronous acquirer callbacks by reconciliation result.",
	}, []string{"result"})
)
