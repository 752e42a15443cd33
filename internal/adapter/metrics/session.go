package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics holds Prometheus metrics for the command path of a session.
type SessionMetrics struct {
	SessionOpen     prometheus.Gauge
	CommandsTotal   *prometheus.CounterVec
	DecodeErrors    *prometheus.CounterVec
	TransportErrors prometheus.Counter
}

// NewSessionMetrics creates and registers session metrics on the given registry.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		SessionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "open",
			Help:      "1 while the broker session is open, 0 otherwise.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of dispatched commands, by command name.",
		}, []string{"command"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "decode_errors_total",
			Help:      "Total number of rejected inbound messages, by error type.",
		}, []string{"error_type"}),
		TransportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transport_errors_total",
			Help:      "Total number of sessions closed by a transport error.",
		}),
	}

	reg.MustRegister(m.SessionOpen, m.CommandsTotal, m.DecodeErrors, m.TransportErrors)
	return m
}
