package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shithost/sigma-dash/internal/platform/version"
)

const namespace = "sigma_dash"

// NewRegistry creates the registry served on /metrics: Go runtime and process
// collectors plus a constant build_info gauge naming the hosting and the build.
func NewRegistry(info version.Info) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Always 1; labels carry the build and the hosting display name.",
		ConstLabels: prometheus.Labels{
			"version":      info.Version,
			"commit":       info.Commit,
			"go_version":   info.GoVersion,
			"hosting_name": info.Name,
		},
	})
	buildInfo.Set(1)
	reg.MustRegister(buildInfo)

	return reg
}

// Handler serves reg and counts its own scrape failures in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
