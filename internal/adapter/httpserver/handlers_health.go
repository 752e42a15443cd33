package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kvasnica/wspydrone/internal/domain"
	"github.com/kvasnica/wspydrone/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const readinessProbeTimeout = 5 * time.Second

// GatewayStatus is what the probes report about the running session and the
// drone link.
type GatewayStatus struct {
	SessionID        string           `json:"session_id,omitempty"`
	SessionOpen      bool             `json:"session_open"`
	SamplingPeriodMS int64            `json:"sampling_period_ms"`
	DroneLink        domain.LinkState `json:"drone_link"`
}

// HealthCheck is an extra named readiness check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type livenessResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
	GatewayStatus
}

type readinessResponse struct {
	Status      string `json:"status"`
	FailedCheck string `json:"failed_check,omitempty"`
	Error       string `json:"error,omitempty"`
	GatewayStatus
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// handleLiveness always succeeds while the process serves requests; the body
// carries the session and link view for operators.
func (s *Server) handleLiveness(c echo.Context) error {
	response := livenessResponse{
		Status:        "ok",
		Uptime:        s.clock.Since(s.startTime).Seconds(),
		GatewayStatus: s.currentStatus(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness reports ready only while a session is open and the drone
// link is not down. The first failing check is named in the response.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	status := s.currentStatus()
	response := readinessResponse{Status: "ready", GatewayStatus: status}
	code := http.StatusOK

	if name, err := s.firstFailure(ctx, status); err != nil {
		s.metrics.ProbeFailures.WithLabelValues(name).Inc()
		response.Status = "unhealthy"
		response.FailedCheck = name
		response.Error = err.Error()
		code = http.StatusServiceUnavailable
	}

	if err := c.JSON(code, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) firstFailure(ctx context.Context, status GatewayStatus) (string, error) {
	if !status.SessionOpen {
		return "session", errors.New("no session open")
	}
	if status.DroneLink == domain.LinkDown {
		return "drone_link", errors.New("drone link is down")
	}
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			return hc.Name, err
		}
	}
	return "", nil
}

func (s *Server) currentStatus() GatewayStatus {
	if s.status == nil {
		return GatewayStatus{}
	}
	return s.status()
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
