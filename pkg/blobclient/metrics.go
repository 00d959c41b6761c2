package blobclient

import (
	"github.com/LeeDigitalWorks/zapblob/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// requestsTotal tracks requests by operation and outcome
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapblob",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Total number of API requests",
	}, []string{"op", "status"}) // status: "ok", "error"

	// requestDuration tracks request latency by operation
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zapblob",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Time spent on API requests",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"op"})

	// retriesTotal tracks transient-failure retries by operation
	retriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapblob",
		Subsystem: "client",
		Name:      "retries_total",
		Help:      "Total number of transient-failure retries",
	}, []string{"op"})

	// rewriteStepsTotal tracks individual rewrite step calls
	rewriteStepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zapblob",
		Subsystem: "client",
		Name:      "rewrite_steps_total",
		Help:      "Total number of rewrite step calls",
	})

	// propagationPollsTotal tracks metadata polls waiting for config propagation
	propagationPollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zapblob",
		Subsystem: "client",
		Name:      "propagation_polls_total",
		Help:      "Total number of polls waiting for config propagation",
	})
)

func init() {
	debug.Registry().MustRegister(
		requestsTotal,
		requestDuration,
		retriesTotal,
		rewriteStepsTotal,
		propagationPollsTotal,
	)
}
