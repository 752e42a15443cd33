// Package mqtt is the MQTT session transport. Commands arrive on one topic;
// replies and telemetry are published on another.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kvasnica/wspydrone/internal/domain"
	apperrors "github.com/kvasnica/wspydrone/internal/errors"
)

const (
	qos               = 0
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // ms
	inboundBufferSize = 16
	defaultBufferSize = 16
)

type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	CommandTopic   string
	TelemetryTopic string
	OutboundBuffer int
	// MaxConnectAttempts bounds the initial connect. Zero means 5.
	MaxConnectAttempts int
}

// Conn is one MQTT session. It implements domain.SessionConn.
type Conn struct {
	client mqtt.Client
	cfg    Config
	logger *slog.Logger

	inbound     chan []byte
	sendChannel chan []byte
	lost        chan error
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// Connect dials the broker with exponential backoff and subscribes to the
// command topic. The client never reconnects on its own: a lost connection
// ends the session.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Conn, error) {
	c := newConn(cfg, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	attempts := cfg.MaxConnectAttempts
	if attempts < 1 {
		attempts = 5
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(attempts-1)), ctx)

	var client mqtt.Client
	err := backoff.RetryNotify(func() error {
		client = mqtt.NewClient(opts)
		token := client.Connect()
		token.Wait()
		return token.Error()
	}, bo, func(err error, next time.Duration) {
		c.logger.Warn("MQTT connect failed, retrying", "broker", cfg.Broker, "backoff", next, "error", err)
	})
	if err != nil {
		return nil, apperrors.TransportError("connect to MQTT broker", err).WithContext("broker", cfg.Broker)
	}

	if err := c.start(client); err != nil {
		client.Disconnect(disconnectQuiesce)
		return nil, err
	}

	c.logger.Info("Connected to MQTT broker", "broker", cfg.Broker, "command_topic", cfg.CommandTopic, "telemetry_topic", cfg.TelemetryTopic)
	return c, nil
}

func newConn(cfg Config, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.OutboundBuffer
	if buffer < 1 {
		buffer = defaultBufferSize
	}
	return &Conn{
		cfg:         cfg,
		logger:      logger,
		inbound:     make(chan []byte, inboundBufferSize),
		sendChannel: make(chan []byte, buffer),
		lost:        make(chan error, 1),
		doneChannel: make(chan struct{}),
	}
}

// start subscribes on a connected client and launches the publisher.
func (c *Conn) start(client mqtt.Client) error {
	c.client = client

	token := client.Subscribe(c.cfg.CommandTopic, qos, c.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return apperrors.TransportError("subscribe to command topic", err).WithContext("topic", c.cfg.CommandTopic)
	}

	c.wg.Add(1)
	go c.run()
	return nil
}

// onMessage runs on the paho router goroutine. Blocking here keeps commands
// in arrival order.
func (c *Conn) onMessage(_ mqtt.Client, m mqtt.Message) {
	payload := append([]byte(nil), m.Payload()...)
	select {
	case c.inbound <- payload:
	case <-c.doneChannel:
	}
}

func (c *Conn) onConnectionLost(_ mqtt.Client, err error) {
	select {
	case c.lost <- err:
	default:
	}
}

func (c *Conn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-c.inbound:
		return payload, nil
	case err := <-c.lost:
		return nil, apperrors.TransportError("MQTT connection lost", err)
	case <-c.doneChannel:
		return nil, domain.ErrSessionClosed
	case <-ctx.Done():
		return nil, domain.ErrSessionClosed
	}
}

func (c *Conn) TrySend(payload []byte) error {
	select {
	case <-c.doneChannel:
		return domain.ErrSessionClosed
	default:
	}
	select {
	case c.sendChannel <- payload:
		return nil
	default:
		return domain.ErrOutboundFull
	}
}

// Close unsubscribes and disconnects. It is safe to call more than once.
func (c *Conn) Close() error {
	c.stopOnce.Do(func() {
		close(c.doneChannel)
		c.wg.Wait()

		if c.client == nil || !c.client.IsConnectionOpen() {
			return
		}
		token := c.client.Unsubscribe(c.cfg.CommandTopic)
		if !token.WaitTimeout(publishTimeout) {
			c.logger.Warn("MQTT unsubscribe timed out", "topic", c.cfg.CommandTopic)
		}
		c.client.Disconnect(disconnectQuiesce)
	})
	return nil
}

func (c *Conn) run() {
	defer c.wg.Done()

	for {
		select {
		case payload := <-c.sendChannel:
			if err := c.publish(payload); err != nil {
				c.logger.Warn("MQTT publish failed", "topic", c.cfg.TelemetryTopic, "error", err)
			}
		case <-c.doneChannel:
			return
		}
	}
}

func (c *Conn) publish(payload []byte) error {
	token := c.client.Publish(c.cfg.TelemetryTopic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timed out after %v", publishTimeout)
	}
	return token.Error()
}
