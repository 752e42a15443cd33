// Package metrics defines the gateway's Prometheus metrics on a private
// registry.
package metrics

import (
	"net/http"

	"github.com/kvasnica/wspydrone/internal/platform/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wspydrone"

// Gateway bundles the metrics the session, broadcaster and drone link share.
// The admin server registers its own.
type Gateway struct {
	Session   *SessionMetrics
	Telemetry *TelemetryMetrics
	Actuator  *ActuatorMetrics
}

func NewGateway(reg prometheus.Registerer) *Gateway {
	return &Gateway{
		Session:   NewSessionMetrics(reg),
		Telemetry: NewTelemetryMetrics(reg),
		Actuator:  NewActuatorMetrics(reg),
	}
}

// NewRegistry creates a registry with Go runtime and process collectors and
// a constant wspydrone_build_info series.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		buildInfo(version.Get()),
	)
	return reg
}

func buildInfo(info version.Info) prometheus.Collector {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information of the running gateway. Always 1.",
	}, []string{"version", "commit", "go_version"})
	g.WithLabelValues(info.Version, info.Commit, info.GoVersion).Set(1)
	return g
}

// Handler serves the registry. Collection errors are reported in the
// response instead of failing the scrape.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry:      reg,
		ErrorHandling: promhttp.ContinueOnError,
	})
}
