// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Admission outcomes labelled by reason code, "admitted" on success
	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jet",
			Name:      "admission_decisions_total",
			Help:      "Admission pipeline outcomes by reason",
		},
		[]string{"reason"},
	)

	RateLimitFailOpen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jet",
			Subsystem: "ratelimit",
			Name:      "fail_open_total",
			Help:      "Rate limit checks admitted because the window store was unavailable",
		},
		[]string{"scope"}, // "ip", "merchant"
	)

	SequenceFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jet",
			Subsystem: "sequence",
			Name:      "fallbacks_total",
			Help:      "Order numbers issued from the degraded fallback value",
		},
	)

	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jet",
			Subsystem: "mail",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by result",
		},
		[]string{"result"}, // "sent", "failed"
	)

	RateSolverIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jet",
			Name:      "rate_solver_iterations",
			Help:      "Secant iterations needed to solve the periodic rate",
			Buckets:   []float64{2, 4, 8, 16, 32, 64, 128},
		},
	)
)
