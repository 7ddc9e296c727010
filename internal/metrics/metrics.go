package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaychat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relaychat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	// outcome: committed, empty, errored, client_gone, rejected
	RelayTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaychat",
			Subsystem: "relay",
			Name:      "turns_total",
			Help:      "Streamed turns by provider family and outcome",
		},
		[]string{"provider", "outcome"},
	)

	RelayDeltasTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaychat",
			Subsystem: "relay",
			Name:      "deltas_total",
			Help:      "Text deltas forwarded to clients",
		},
		[]string{"provider"},
	)

	RelayStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relaychat",
			Subsystem: "relay",
			Name:      "stream_duration_seconds",
			Help:      "Time from stream open to close",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	QuotaDecrementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaychat",
			Subsystem: "quota",
			Name:      "decrements_total",
			Help:      "Quota decrement attempts by result",
		},
		[]string{"result"},
	)

	// outcome: hit, miss, error, empty
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaychat",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Web search lookups by outcome",
		},
		[]string{"outcome"},
	)
)
