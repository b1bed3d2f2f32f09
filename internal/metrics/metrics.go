package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	DiagramsGenerated *prometheus.CounterVec
	AIRequests        *prometheus.CounterVec
	AIDuration        *prometheus.HistogramVec
	Fallbacks         *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DiagramsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "texto_diagrama",
			Name:      "diagrams_generated_total",
			Help:      "Diagrams generated, by source and diagram kind.",
		}, []string{"source", "kind"}),
		AIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "texto_diagrama",
			Name:      "ai_requests_total",
			Help:      "Calls to the AI provider, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		AIDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "texto_diagrama",
			Name:      "ai_request_duration_seconds",
			Help:      "Latency of AI provider calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"provider"}),
		Fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "texto_diagrama",
			Name:      "heuristic_fallbacks_total",
			Help:      "Times the keyword heuristic replaced the AI, by reason.",
		}, []string{"reason"}),
	}
}
