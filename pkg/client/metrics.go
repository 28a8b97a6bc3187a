package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScorelinkRequestsTotal counts engine calls by opcode and outcome.
	ScorelinkRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorelink_requests_total",
			Help: "Total number of engine requests by opcode and outcome",
		},
		[]string{"opcode", "outcome"},
	)

	// ScorelinkRequestDuration tracks round-trip latency, encode to decode.
	ScorelinkRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scorelink_request_duration_seconds",
			Help:    "Engine request latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
		[]string{"opcode"},
	)
)

func init() {
	prometheus.MustRegister(ScorelinkRequestsTotal)
	prometheus.MustRegister(ScorelinkRequestDuration)
}

// Outcome labels.
const (
	outcomeOK        = "ok"
	outcomeEncode    = "encode_error"
	outcomeTransport = "transport_error"
	outcomeTimeout   = "timeout"
	outcomeDecode    = "decode_error"
	outcomeService   = "service_error"
)
