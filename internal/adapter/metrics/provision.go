package metrics

import "github.com/prometheus/client_golang/prometheus"

// ProvisionMetrics counts provisioning attempts by outcome. It implements app.ProvisionObserver.
type ProvisionMetrics struct {
	Outcomes *prometheus.CounterVec
}

func NewProvisionMetrics(reg prometheus.Registerer) *ProvisionMetrics {
	m := &ProvisionMetrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provisioning",
			Name:      "outcomes_total",
			Help:      "Total number of provisioning attempts, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.Outcomes)
	return m
}

func (m *ProvisionMetrics) ObserveProvision(outcome string) {
	m.Outcomes.WithLabelValues(outcome).Inc()
}
