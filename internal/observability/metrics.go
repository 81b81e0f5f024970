package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	requestsTotal      *prometheus.CounterVec
	latencySeconds     *prometheus.HistogramVec
	errorsTotal        *prometheus.CounterVec
	messagesSentTotal  *prometheus.CounterVec
	typingSignalsTotal *prometheus.CounterVec
	typingConnsTotal   prometheus.Counter
	probeRequestsTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ultracoach_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ultracoach_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ultracoach_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		messagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ultracoach_messages_sent_total",
			Help: "Total number of chat messages accepted for delivery.",
		}, []string{"context_type"})

		typingSignalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ultracoach_typing_signals_total",
			Help: "Total number of typing presence signals relayed.",
		}, []string{"state"})

		typingConnsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ultracoach_typing_connections_total",
			Help: "Total number of typing websocket connections accepted.",
		})

		probeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ultracoach_probe_requests_total",
			Help: "Total number of liveness probe requests served.",
		})

		prometheus.MustRegister(requestsTotal, latencySeconds, errorsTotal,
			messagesSentTotal, typingSignalsTotal, typingConnsTotal, probeRequestsTotal)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// MessagesSent exposes the counter for accepted chat messages.
func MessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesSentTotal
}

// TypingSignals exposes the counter for relayed typing signals.
func TypingSignals() *prometheus.CounterVec {
	RegisterMetrics()
	return typingSignalsTotal
}

// TypingConnections exposes the counter for typing websocket connections.
func TypingConnections() prometheus.Counter {
	RegisterMetrics()
	return typingConnsTotal
}

// ProbeRequests exposes the counter for liveness probe hits.
func ProbeRequests() prometheus.Counter {
	RegisterMetrics()
	return probeRequestsTotal
}
