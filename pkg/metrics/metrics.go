// Package metrics holds the Prometheus instruments shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TurnsTotal        *prometheus.CounterVec
	TurnDuration      prometheus.Histogram
	RemoteAttempts    *prometheus.CounterVec
	SupersededResults prometheus.Counter
	ActiveSessions    prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shoptalk_chat_turns_total",
			Help: "Chat turns handled, by outcome.",
		}, []string{"outcome"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shoptalk_chat_turn_duration_seconds",
			Help:    "End-to-end latency of a chat turn.",
			Buckets: prometheus.DefBuckets,
		}),
		RemoteAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shoptalk_commerce_attempts_total",
			Help: "Remote commerce API attempts, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		SupersededResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "shoptalk_superseded_results_total",
			Help: "Completed remote calls discarded because a newer request superseded them.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shoptalk_active_sessions",
			Help: "Sessions currently held in memory.",
		}),
	}
}

// NewDefault registers against the default Prometheus registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
