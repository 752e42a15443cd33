package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/kvasnica/wspydrone/internal/adapter/metrics"
	"github.com/kvasnica/wspydrone/internal/broadcast"
	"github.com/kvasnica/wspydrone/internal/command"
	"github.com/kvasnica/wspydrone/internal/domain"
	apperrors "github.com/kvasnica/wspydrone/internal/errors"
	"github.com/kvasnica/wspydrone/internal/platform/correlation"
)

const (
	DefaultLandSettle = 3 * time.Second
	DefaultHaltSettle = 1 * time.Second
)

// Options tunes a Controller. Zero settle durations fall back to the defaults;
// nil logger and metrics are allowed.
type Options struct {
	LandSettle       time.Duration
	HaltSettle       time.Duration
	Logger           *slog.Logger
	SessionMetrics   *metrics.SessionMetrics
	TelemetryMetrics *metrics.TelemetryMetrics
}

// Controller runs sessions against a single actuator.
type Controller struct {
	actuator   domain.Actuator
	state      *State
	clock      clockwork.Clock
	dispatcher *command.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.SessionMetrics
	telemetry  *metrics.TelemetryMetrics
	landSettle time.Duration
	haltSettle time.Duration

	mu        sync.Mutex
	sessionID string
}

// Status is a point-in-time view of the controller for the admin probes.
type Status struct {
	SessionID      string
	Open           bool
	SamplingPeriod time.Duration
}

func NewController(actuator domain.Actuator, state *State, clock clockwork.Clock, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	landSettle := opts.LandSettle
	if landSettle == 0 {
		landSettle = DefaultLandSettle
	}
	haltSettle := opts.HaltSettle
	if haltSettle == 0 {
		haltSettle = DefaultHaltSettle
	}

	return &Controller{
		actuator:   actuator,
		state:      state,
		clock:      clock,
		dispatcher: command.NewDispatcher(actuator, logger, opts.SessionMetrics),
		logger:     logger,
		metrics:    opts.SessionMetrics,
		telemetry:  opts.TelemetryMetrics,
		landSettle: landSettle,
		haltSettle: haltSettle,
	}
}

// Open reports whether a session is currently running.
func (c *Controller) Open() bool {
	return c.state.Running()
}

// Status reports the current session id, which is empty between sessions.
func (c *Controller) Status() Status {
	c.mu.Lock()
	id := c.sessionID
	c.mu.Unlock()

	return Status{
		SessionID:      id,
		Open:           c.state.Running(),
		SamplingPeriod: c.state.SamplingPeriod(),
	}
}

func (c *Controller) setSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// session is the per-connection bookkeeping of one Run call.
type session struct {
	id              string
	conn            domain.SessionConn
	cancelBroadcast context.CancelFunc
	broadcastDone   chan struct{}
	closeOnce       sync.Once
}

// Run opens a session on conn and blocks until it has closed and the drone
// has been brought down. Cancelling ctx closes the session. The returned
// error is the transport error that ended the session, or nil for a clean
// close or a cancellation.
func (c *Controller) Run(ctx context.Context, conn domain.SessionConn) error {
	s := &session{
		id:            uuid.NewString(),
		conn:          conn,
		broadcastDone: make(chan struct{}),
	}
	ctx = correlation.WithSessionID(ctx, s.id)

	c.open(ctx, s)

	stopWatch := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopWatch()

	err := c.readLoop(ctx, s)
	switch {
	case ctx.Err() != nil:
		c.logger.InfoContext(ctx, "Gateway stopping, closing session")
		err = nil
	case errors.Is(err, domain.ErrSessionClosed):
		c.logger.InfoContext(ctx, "Session closed by peer")
		err = nil
	default:
		c.logger.ErrorContext(ctx, "Session transport failed", apperrors.AsStructuredError(err).LogAttrs()...)
		if c.metrics != nil {
			c.metrics.TransportErrors.Inc()
		}
	}

	c.close(ctx, s)
	return err
}

func (c *Controller) open(ctx context.Context, s *session) {
	c.setSessionID(s.id)
	c.state.Open()
	if c.metrics != nil {
		c.metrics.SessionOpen.Set(1)
	}
	c.logger.InfoContext(ctx, "Session opened", "sampling_period", c.state.SamplingPeriod())

	// The broadcaster must survive gateway cancellation until the close
	// sequence stops it, so it gets its own context.
	bctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelBroadcast = cancel

	b := broadcast.New(c.actuator, c.state, s.conn, c.clock, c.logger, c.telemetry)
	go func() {
		defer close(s.broadcastDone)
		b.Run(bctx)
	}()
}

func (c *Controller) readLoop(ctx context.Context, s *session) error {
	for {
		payload, err := s.conn.ReadMessage(ctx)
		if err != nil {
			return err
		}
		c.handleMessage(ctx, s, payload)
	}
}

func (c *Controller) handleMessage(ctx context.Context, s *session, payload []byte) {
	ctx = correlation.WithID(ctx, correlation.NewID())

	cmd, err := command.Decode(payload)
	if err != nil {
		structured := apperrors.AsStructuredError(err)
		attrs := append(structured.LogAttrs(), "payload", string(payload))
		c.logger.WarnContext(ctx, "Inbound message rejected", attrs...)
		if c.metrics != nil {
			c.metrics.DecodeErrors.WithLabelValues(string(structured.Type)).Inc()
		}
		return
	}

	c.dispatcher.Dispatch(ctx, cmd, payload, c.state, s.conn)
}

// close runs the safe-shutdown sequence. The settle waits are not
// interruptible.
func (c *Controller) close(ctx context.Context, s *session) {
	s.closeOnce.Do(func() {
		c.state.Close()
		s.cancelBroadcast()
		<-s.broadcastDone
		_ = s.conn.Close()

		c.logger.InfoContext(ctx, "Landing drone", "settle", c.landSettle)
		c.actuator.Land()
		c.clock.Sleep(c.landSettle)

		c.logger.InfoContext(ctx, "Halting drone", "settle", c.haltSettle)
		c.actuator.Halt()
		c.clock.Sleep(c.haltSettle)

		c.state.Reset()
		c.setSessionID("")
		if c.metrics != nil {
			c.metrics.SessionOpen.Set(0)
		}
		c.logger.InfoContext(ctx, "Session shut down, bye")
	})
}
