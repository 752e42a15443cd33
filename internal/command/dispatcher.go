package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kvasnica/wspydrone/internal/adapter/metrics"
	"github.com/kvasnica/wspydrone/internal/domain"
)

// SamplingSetter is the slice of session state a SetSampling command mutates.
type SamplingSetter interface {
	SetSamplingPeriod(period time.Duration)
}

var pongPayload = mustMarshal(domain.PingReply{Ping: "pong"})

// Dispatcher applies decoded commands to the actuator.
type Dispatcher struct {
	actuator domain.Actuator
	logger   *slog.Logger
	metrics  *metrics.SessionMetrics
}

// NewDispatcher creates a dispatcher. logger and m may be nil.
func NewDispatcher(actuator domain.Actuator, logger *slog.Logger, m *metrics.SessionMetrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{actuator: actuator, logger: logger, metrics: m}
}

// Dispatch performs the side effect of cmd. raw is the payload cmd was
// decoded from and is written to the debug log. Ping replies go to reply;
// nothing else is ever sent back.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd domain.Command, raw []byte, state SamplingSetter, reply domain.Sender) {
	d.logger.DebugContext(ctx, "Dispatching command", "command", cmd.Name(), "payload", string(raw))

	switch c := cmd.(type) {
	case domain.Ping:
		if err := reply.TrySend(pongPayload); err != nil {
			d.logger.WarnContext(ctx, "Ping reply not sent", "error", err)
		}
	case domain.TakeOff:
		d.actuator.TakeOff()
	case domain.Land:
		d.actuator.Land()
	case domain.Halt:
		d.actuator.Halt()
	case domain.Reset:
		d.actuator.Reset()
	case domain.Hover:
		d.actuator.Hover()
	case domain.Trim:
		d.actuator.Trim()
	case domain.Move:
		d.actuator.Move(c.LR, c.RB, c.VV, c.VA)
	case domain.SetSpeed:
		d.actuator.SetSpeed(c.V)
	case domain.SetSampling:
		state.SetSamplingPeriod(c.Period)
	default:
		// Command is sealed, so this only fires if a new variant is added
		// without a case here.
		d.logger.ErrorContext(ctx, "Unhandled command type", "command_type", fmt.Sprintf("%T", cmd))
		return
	}

	if d.metrics != nil {
		d.metrics.CommandsTotal.WithLabelValues(cmd.Name()).Inc()
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
