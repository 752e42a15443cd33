package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kvasnica/wspydrone/internal/adapter/ardrone"
	"github.com/kvasnica/wspydrone/internal/adapter/httpserver"
	"github.com/kvasnica/wspydrone/internal/adapter/metrics"
	"github.com/kvasnica/wspydrone/internal/adapter/mqtt"
	"github.com/kvasnica/wspydrone/internal/adapter/simdrone"
	"github.com/kvasnica/wspydrone/internal/adapter/websocket"
	"github.com/kvasnica/wspydrone/internal/domain"
	"github.com/kvasnica/wspydrone/internal/platform/config"
	"github.com/kvasnica/wspydrone/internal/platform/logging"
	"github.com/kvasnica/wspydrone/internal/platform/retry"
	"github.com/kvasnica/wspydrone/internal/platform/version"
	"github.com/kvasnica/wspydrone/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

const adminShutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupActuator(cfg *config.Config, clock clockwork.Clock, m *metrics.ActuatorMetrics) (domain.Actuator, error) {
	if cfg.Drone == config.DroneSimulator {
		slog.Info("Using simulated drone")
		return simdrone.New(clock, slog.Default()), nil
	}

	drone, err := ardrone.Dial(ardrone.Options{
		Host:    cfg.DroneAddr,
		Clock:   clock,
		Logger:  slog.Default(),
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reach drone at %s: %w", cfg.DroneAddr, err)
	}
	return drone, nil
}

func setupTransport(ctx context.Context, cfg *config.Config, clock clockwork.Clock) domain.SessionConn {
	switch cfg.Transport {
	case config.TransportMQTT:
		conn, err := mqtt.Connect(ctx, mqtt.Config{
			Broker:             cfg.MQTTBroker,
			ClientID:           cfg.MQTTClientID,
			Username:           cfg.MQTTUsername,
			Password:           cfg.MQTTPassword,
			CommandTopic:       cfg.MQTTCommandTopic,
			TelemetryTopic:     cfg.MQTTTelemetryTopic,
			OutboundBuffer:     cfg.OutboundBuffer,
			MaxConnectAttempts: cfg.DialAttempts,
		}, slog.Default())
		if err != nil {
			slog.Error("Failed to connect to MQTT broker", "broker", cfg.MQTTBroker, "error", err)
			return nil
		}
		return conn
	default:
		policy := retry.Policy{
			MaxAttempts:    cfg.DialAttempts,
			InitialBackoff: cfg.DialBackoff,
			MaxBackoff:     30 * time.Second,
			Clock:          clock,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Broker dial failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
			},
		}
		conn, err := websocket.Dial(ctx, cfg.GatewayURL, policy, websocket.Options{
			OutboundBuffer: cfg.OutboundBuffer,
			Clock:          clock,
			Logger:         slog.Default(),
		})
		if err != nil {
			slog.Error("Failed to connect to broker", "url", cfg.GatewayURL, "error", err)
			return nil
		}
		return conn
	}
}

// gatewayStatus combines the controller's session view with the actuator's
// link state for the admin probes.
func gatewayStatus(controller *session.Controller, actuator domain.Actuator) func() httpserver.GatewayStatus {
	return func() httpserver.GatewayStatus {
		st := controller.Status()
		status := httpserver.GatewayStatus{
			SessionID:        st.SessionID,
			SessionOpen:      st.Open,
			SamplingPeriodMS: st.SamplingPeriod.Milliseconds(),
			DroneLink:        domain.LinkUp,
		}
		if link, ok := actuator.(domain.LinkReporter); ok {
			status.DroneLink = link.LinkState()
		}
		return status
	}
}

func startAdminServer(cfg *config.Config, reg *prometheus.Registry, clock clockwork.Clock, status func() httpserver.GatewayStatus) *httpserver.Server {
	if cfg.AdminPort == "" {
		return nil
	}

	srv := httpserver.NewServer(httpserver.Options{
		Port:     cfg.AdminPort,
		Registry: reg,
		Clock:    clock,
		Status:   status,
	})

	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("Admin server error", "error", err)
		}
	}()

	return srv
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Gateway starting", "build", version.Get(), "transport", cfg.Transport, "drone", cfg.Drone)

	os.Exit(run(cfg))
}

// run owns every resource so deferred cleanup happens before the process exits.
func run(cfg *config.Config) int {
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	gatewayMetrics := metrics.NewGateway(reg)

	actuator, err := setupActuator(cfg, clock, gatewayMetrics.Actuator)
	if err != nil {
		slog.Error("Failed to set up actuator", "error", err)
		return 1
	}
	defer func() {
		if closer, ok := actuator.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				slog.Error("Failed to close drone link", "error", err)
			}
		}
	}()

	state := session.NewState(cfg.SamplingPeriod)
	controller := session.NewController(actuator, state, clock, session.Options{
		LandSettle:       cfg.LandSettle,
		HaltSettle:       cfg.HaltSettle,
		Logger:           slog.Default(),
		SessionMetrics:   gatewayMetrics.Session,
		TelemetryMetrics: gatewayMetrics.Telemetry,
	})

	admin := startAdminServer(cfg, reg, clock, gatewayStatus(controller, actuator))
	defer func() {
		if admin == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
		defer cancel()
		if err := admin.Shutdown(shutdownCtx); err != nil {
			slog.Error("Admin server shutdown error", "error", err)
		}
	}()

	conn := setupTransport(ctx, cfg, clock)
	if conn == nil {
		return 1
	}

	if err := controller.Run(ctx, conn); err != nil {
		slog.Error("Session ended with error", "error", err)
	}
	slog.Info("Gateway stopped")
	return 0
}
