package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that hit no admin route, which keeps
// scanners from growing the label set.
const unmatchedRoute = "unmatched"

// AdminMetrics covers the admin endpoint: requests per route and the
// readiness checks that failed.
type AdminMetrics struct {
	Requests      *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	ProbeFailures *prometheus.CounterVec
}

func NewAdminMetrics(reg prometheus.Registerer) *AdminMetrics {
	m := &AdminMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Admin requests by route and status code.",
		}, []string{"route", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin request latency by route.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		}, []string{"route"}),
		ProbeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "readiness_failures_total",
			Help:      "Failed readiness checks by check name.",
		}, []string{"check"}),
	}

	reg.MustRegister(m.Requests, m.Duration, m.ProbeFailures)
	return m
}

// Middleware records every admin request except scrapes of /metrics.
func (m *AdminMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}

			var route, status string
			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
				m.Duration.WithLabelValues(route).Observe(v)
				m.Requests.WithLabelValues(route, status).Inc()
			}))

			err := next(c)
			route, status = routeAndStatus(c, err)
			timer.ObserveDuration()
			return err
		}
	}
}

// routeAndStatus resolves labels after the handler ran. Errors have not been
// written to the response yet, so their status comes from the error.
func routeAndStatus(c echo.Context, err error) (string, string) {
	code := c.Response().Status
	if err != nil {
		code = http.StatusInternalServerError
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			code = httpErr.Code
		}
	}

	route := c.Path()
	if route == "" || code == http.StatusNotFound || code == http.StatusMethodNotAllowed {
		route = unmatchedRoute
	}
	return route, strconv.Itoa(code)
}
