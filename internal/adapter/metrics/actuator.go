package metrics

import "github.com/prometheus/client_golang/prometheus"

// ActuatorMetrics holds Prometheus metrics for the drone link.
type ActuatorMetrics struct {
	Faults          *prometheus.CounterVec
	NavdataPackets  prometheus.Counter
	NavdataRejected prometheus.Counter
	BreakerState    prometheus.Gauge
}

// NewActuatorMetrics creates and registers actuator metrics on the given registry.
func NewActuatorMetrics(reg prometheus.Registerer) *ActuatorMetrics {
	m := &ActuatorMetrics{
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actuator",
			Name:      "faults_total",
			Help:      "Total number of swallowed actuator faults, by operation.",
		}, []string{"op"}),
		NavdataPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actuator",
			Name:      "navdata_packets_total",
			Help:      "Total number of navdata packets decoded.",
		}),
		NavdataRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actuator",
			Name:      "navdata_rejected_total",
			Help:      "Total number of navdata packets that failed to decode.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "actuator",
			Name:      "breaker_state",
			Help:      "Drone link circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.Faults, m.NavdataPackets, m.NavdataRejected, m.BreakerState)
	return m
}
