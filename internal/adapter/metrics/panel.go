package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PanelMetrics tracks calls to the hosting panel API. It implements panel.RequestObserver.
type PanelMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func NewPanelMetrics(reg prometheus.Registerer) *PanelMetrics {
	m := &PanelMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "requests_total",
			Help:      "Total number of panel API operations, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "request_duration_seconds",
			Help:      "Duration of panel API operations including retries.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration)
	return m
}

func (m *PanelMetrics) ObservePanelRequest(operation, outcome string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
