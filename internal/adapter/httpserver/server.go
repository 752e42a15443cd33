// Package httpserver is the gateway's admin endpoint: health probes, build
// information and Prometheus metrics.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kvasnica/wspydrone/internal/adapter/metrics"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures the admin server. Status is required; HealthChecks are
// run by the readiness probe after the built-in session and link checks.
type Options struct {
	Port         string
	Registry     *prometheus.Registry
	Clock        clockwork.Clock
	Status       func() GatewayStatus
	HealthChecks []HealthCheck
}

type Server struct {
	echo         *echo.Echo
	port         string
	registry     *prometheus.Registry
	metrics      *metrics.AdminMetrics
	status       func() GatewayStatus
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		port:         opts.Port,
		registry:     opts.Registry,
		metrics:      metrics.NewAdminMetrics(opts.Registry),
		status:       opts.Status,
		healthChecks: opts.HealthChecks,
		clock:        opts.Clock,
		startTime:    opts.Clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting admin server", "port", s.port)
	if err := s.echo.Start(":" + s.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start admin server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown admin server: %w", err)
	}
	return nil
}
