package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kvasnica/wspydrone/internal/adapter/metrics"
	"github.com/kvasnica/wspydrone/internal/domain"
)

// State is the session state the broadcaster consults at every cycle.
type State interface {
	Running() bool
	SamplingPeriod() time.Duration
}

// Broadcaster periodically pushes the actuator's latest telemetry to a sender.
type Broadcaster struct {
	actuator domain.Actuator
	state    State
	sender   domain.Sender
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *metrics.TelemetryMetrics
}

// New creates a broadcaster. logger and m may be nil.
func New(actuator domain.Actuator, state State, sender domain.Sender, clock clockwork.Clock, logger *slog.Logger, m *metrics.TelemetryMetrics) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		actuator: actuator,
		state:    state,
		sender:   sender,
		clock:    clock,
		logger:   logger,
		metrics:  m,
	}
}

// Run executes cycles until the state reports the session is no longer
// running or ctx is cancelled. The first cycle starts immediately.
func (b *Broadcaster) Run(ctx context.Context) {
	cycles := 0
	defer func() {
		b.logger.DebugContext(ctx, "Broadcaster stopped", "cycles", cycles)
	}()

	for {
		if !b.state.Running() {
			return
		}

		period := b.state.SamplingPeriod()
		next := b.clock.NewTimer(period)
		if b.metrics != nil {
			b.metrics.SamplingPeriod.Set(period.Seconds())
		}

		b.broadcast(ctx)
		cycles++

		select {
		case <-next.Chan():
		case <-ctx.Done():
			next.Stop()
			return
		}
	}
}

func (b *Broadcaster) broadcast(ctx context.Context) {
	snapshot := b.actuator.LatestTelemetry()

	data, err := json.Marshal(snapshot)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to marshal telemetry", "error", err)
		return
	}

	err = b.sender.TrySend(data)
	switch {
	case err == nil:
		if b.metrics != nil {
			b.metrics.Sent.Inc()
		}
	case errors.Is(err, domain.ErrOutboundFull):
		b.logger.DebugContext(ctx, "Outbound queue full, telemetry dropped", "num_frames", snapshot.NumFrames)
		if b.metrics != nil {
			b.metrics.Dropped.Inc()
		}
	default:
		b.logger.DebugContext(ctx, "Telemetry not sent", "error", err)
	}
}
