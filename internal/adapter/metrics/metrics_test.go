package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kvasnica/wspydrone/internal/platform/version"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_AllMetricsRegisterOnce(t *testing.T) {
	reg := NewRegistry()

	gw := NewGateway(reg)
	NewAdminMetrics(reg)

	gw.Session.CommandsTotal.WithLabelValues("takeoff").Inc()
	gw.Telemetry.Dropped.Inc()
	gw.Actuator.Faults.WithLabelValues("land").Inc()

	expected := `
# HELP wspydrone_commands_total Total number of dispatched commands, by command name.
# TYPE wspydrone_commands_total counter
wspydrone_commands_total{command="takeoff"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "wspydrone_commands_total"))
	assert.Equal(t, 1.0, testutil.ToFloat64(gw.Telemetry.Dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(gw.Actuator.Faults.WithLabelValues("land")))
}

func TestNewRegistry_ExposesBuildInfo(t *testing.T) {
	info := version.Get()
	reg := NewRegistry()

	expected := `
# HELP wspydrone_build_info Build information of the running gateway. Always 1.
# TYPE wspydrone_build_info gauge
wspydrone_build_info{commit="` + info.Commit + `",go_version="` + info.GoVersion + `",version="` + info.Version + `"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "wspydrone_build_info"))
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewTelemetryMetrics(reg)
	m.Sent.Add(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wspydrone_telemetry_sent_total 3")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAdminMetrics_LabelsAdminRoutes(t *testing.T) {
	reg := NewRegistry()
	m := NewAdminMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusServiceUnavailable) })
	e.GET("/version", func(c echo.Context) error { return c.String(http.StatusOK, "v") })
	e.GET("/metrics", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/version", "/health/ready", "/metrics", "/wp-login.php", "/.env"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/version", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/health/ready", "503")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues(unmatchedRoute, "404")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.Requests), "scrapes of /metrics are not recorded")
}
