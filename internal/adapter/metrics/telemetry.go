package metrics

import "github.com/prometheus/client_golang/prometheus"

// TelemetryMetrics holds Prometheus metrics for the telemetry broadcaster.
type TelemetryMetrics struct {
	Sent           prometheus.Counter
	Dropped        prometheus.Counter
	SamplingPeriod prometheus.Gauge
}

// NewTelemetryMetrics creates and registers telemetry metrics on the given registry.
func NewTelemetryMetrics(reg prometheus.Registerer) *TelemetryMetrics {
	m := &TelemetryMetrics{
		Sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "sent_total",
			Help:      "Total number of telemetry snapshots handed to the session.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "dropped_total",
			Help:      "Total number of telemetry snapshots dropped because the outbound queue was full.",
		}),
		SamplingPeriod: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "sampling_period_seconds",
			Help:      "Sampling period used for the most recent broadcast cycle.",
		}),
	}

	reg.MustRegister(m.Sent, m.Dropped, m.SamplingPeriod)
	return m
}
