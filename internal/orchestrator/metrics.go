package orchestrator

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTurns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orch_turns_total",
		Help: "Total user turns processed",
	})

	metricDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_decisions_total",
		Help: "Turn decisions by type",
	}, []string{"decision"})

	metricEscalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_escalations_total",
		Help: "Escalations by reason class",
	}, []string{"reason"})

	metricGenerationFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orch_generation_fallbacks_total",
		Help: "Auto turns that substituted the apology fallback",
	})

	metricTurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orch_turn_latency_ms",
		Help:    "End-to-end latency of one orchestration step",
		Buckets: prometheus.ExponentialBuckets(10, 1.6, 12),
	})
)

// reasonClass strips the dynamic suffix from composite reason codes so
// label cardinality stays bounded.
func reasonClass(reason string) string {
	if i := strings.Index(reason, ":"); i > 0 {
		return reason[:i]
	}
	return reason
}
