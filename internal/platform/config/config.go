package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kvasnica/wspydrone/internal/domain"
	"go-simpler.org/env"
)

// Session transports.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
)

// Drone adapters.
const (
	DroneARDrone   = "ardrone"
	DroneSimulator = "sim"
)

type Config struct {
	Transport string `env:"TRANSPORT" default:"websocket"`
	// GatewayURL is the broker endpoint the websocket transport dials once at start-up.
	GatewayURL string `env:"GATEWAY_URL" default:"ws://127.0.0.1:8025/t/ardrone"`

	MQTTBroker         string `env:"MQTT_BROKER" default:"tcp://127.0.0.1:1883"`
	MQTTClientID       string `env:"MQTT_CLIENT_ID" default:"wspydrone"`
	MQTTUsername       string `env:"MQTT_USERNAME"`
	MQTTPassword       string `env:"MQTT_PASSWORD"`
	MQTTCommandTopic   string `env:"MQTT_COMMAND_TOPIC" default:"ardrone/command"`
	MQTTTelemetryTopic string `env:"MQTT_TELEMETRY_TOPIC" default:"ardrone/navdata"`

	Drone     string `env:"DRONE" default:"ardrone"`
	DroneAddr string `env:"DRONE_ADDR" default:"192.168.1.1"`

	SamplingPeriod time.Duration `env:"SAMPLING_PERIOD" default:"500ms"`
	LandSettle     time.Duration `env:"LAND_SETTLE" default:"3s"`
	HaltSettle     time.Duration `env:"HALT_SETTLE" default:"1s"`
	OutboundBuffer int           `env:"OUTBOUND_BUFFER" default:"16"`

	DialAttempts int           `env:"DIAL_ATTEMPTS" default:"5"`
	DialBackoff  time.Duration `env:"DIAL_BACKOFF" default:"1s"`

	AdminPort string `env:"ADMIN_PORT" default:"8081"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Transport {
	case TransportWebSocket:
		u, err := url.Parse(cfg.GatewayURL)
		if err != nil {
			return fmt.Errorf("GATEWAY_URL is invalid: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("GATEWAY_URL must use ws or wss, got %q", u.Scheme)
		}
	case TransportMQTT:
		required := map[string]string{
			"MQTT_BROKER":          cfg.MQTTBroker,
			"MQTT_CLIENT_ID":       cfg.MQTTClientID,
			"MQTT_COMMAND_TOPIC":   cfg.MQTTCommandTopic,
			"MQTT_TELEMETRY_TOPIC": cfg.MQTTTelemetryTopic,
		}
		for name, value := range required {
			if strings.TrimSpace(value) == "" {
				return fmt.Errorf("%s is required", name)
			}
		}
	default:
		return fmt.Errorf("TRANSPORT must be %q or %q, got %q", TransportWebSocket, TransportMQTT, cfg.Transport)
	}

	switch cfg.Drone {
	case DroneARDrone:
		if strings.TrimSpace(cfg.DroneAddr) == "" {
			return errors.New("DRONE_ADDR is required")
		}
	case DroneSimulator:
	default:
		return fmt.Errorf("DRONE must be %q or %q, got %q", DroneARDrone, DroneSimulator, cfg.Drone)
	}

	if cfg.SamplingPeriod < domain.MinSamplingPeriod || cfg.SamplingPeriod > domain.MaxSamplingPeriod {
		return fmt.Errorf("SAMPLING_PERIOD must be between %v and %v", domain.MinSamplingPeriod, domain.MaxSamplingPeriod)
	}
	if cfg.LandSettle <= 0 || cfg.HaltSettle <= 0 {
		return errors.New("LAND_SETTLE and HALT_SETTLE must be positive")
	}
	if cfg.OutboundBuffer < 1 {
		return errors.New("OUTBOUND_BUFFER must be at least 1")
	}
	if cfg.DialAttempts < 1 {
		return errors.New("DIAL_ATTEMPTS must be at least 1")
	}

	return nil
}
