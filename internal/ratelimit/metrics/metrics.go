package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions          *prometheus.CounterVec
	FallbackActive     prometheus.Gauge
	CircuitTransitions *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idcheck_ratelimit_decisions_total",
			Help: "Rate limit decisions by outcome (allowed, denied, error)",
		}, []string{"decision"}),
		FallbackActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "idcheck_ratelimit_fallback_active",
			Help: "1 while counters are served from the in-memory fallback",
		}),
		CircuitTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idcheck_ratelimit_circuit_transitions_total",
			Help: "Rate limit store circuit breaker transitions by new state",
		}, []string{"state"}),
	}
}

func (m *Metrics) IncrementDecision(decision string) {
	m.Decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) CircuitOpened() {
	m.CircuitTransitions.WithLabelValues("open").Inc()
	m.FallbackActive.Set(1)
}

func (m *Metrics) CircuitClosed() {
	m.CircuitTransitions.WithLabelValues("closed").Inc()
	m.FallbackActive.Set(0)
}
