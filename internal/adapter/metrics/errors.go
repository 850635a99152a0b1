package metrics

import "github.com/prometheus/client_golang/prometheus"

// ErrorMetrics counts errors rendered to clients, by error type.
type ErrorMetrics struct {
	Total *prometheus.CounterVec
}

func NewErrorMetrics(reg prometheus.Registerer) *ErrorMetrics {
	m := &ErrorMetrics{
		Total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of error responses, by error type.",
		}, []string{"type"}),
	}

	reg.MustRegister(m.Total)
	return m
}

func (m *ErrorMetrics) ObserveError(errorType string) {
	m.Total.WithLabelValues(errorType).Inc()
}
