package metrics

import "github.com/prometheus/client_golang/prometheus"

// GateMetrics tracks the VPN gate: one decision per gated request and the cache
// layer that answered the reputation lookup.
type GateMetrics struct {
	Decisions   *prometheus.CounterVec
	CacheLookup *prometheus.CounterVec
}

func NewGateMetrics(reg prometheus.Registerer) *GateMetrics {
	m := &GateMetrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Total number of VPN gate decisions (allowed, blocked, error).",
		}, []string{"decision"}),
		CacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "reputation_cache_total",
			Help:      "Reputation lookups by answering layer (memory, shared, miss).",
		}, []string{"layer"}),
	}

	reg.MustRegister(m.Decisions, m.CacheLookup)
	return m
}

func (m *GateMetrics) ObserveGateDecision(decision string) {
	m.Decisions.WithLabelValues(decision).Inc()
}

func (m *GateMetrics) ObserveReputationCache(layer string) {
	m.CacheLookup.WithLabelValues(layer).Inc()
}
