// Package simdrone is an in-process drone used for development runs and
// end-to-end tests. It implements domain.Actuator, records every call and
// produces plausible telemetry from the last commanded state.
package simdrone

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kvasnica/wspydrone/internal/domain"
)

// Control states reported in the upper 16 bits of ctrl_state, as the real
// firmware does.
const (
	StateLanded   uint32 = 2
	StateFlying   uint32 = 3
	StateHovering uint32 = 4
	StateTakeOff  uint32 = 6
	StateLanding  uint32 = 8
)

const (
	cruiseAltitude = 1000 // mm
	maxVelocity    = 2000 // mm/s at full tilt
	maxAngle       = 30   // degrees at full tilt
	framesPerPct   = 100  // frames per percent of battery
)

// Call is one recorded actuator invocation.
type Call struct {
	Op   string
	Args []float64
	At   time.Time
}

// Drone is a simulated actuator. The zero value is not usable; call New.
type Drone struct {
	clock  clockwork.Clock
	logger *slog.Logger

	mu     sync.Mutex
	calls  []Call
	state  uint32
	speed  float64
	lr     float64
	rb     float64
	vv     float64
	va     float64
	psi    float64
	frames uint32
}

// New creates a landed drone with a full battery.
func New(clock clockwork.Clock, logger *slog.Logger) *Drone {
	if logger == nil {
		logger = slog.Default()
	}
	return &Drone{
		clock:  clock,
		logger: logger,
		state:  StateLanded,
		speed:  0.2,
	}
}

func (d *Drone) TakeOff() {
	d.record("takeoff")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateFlying
}

func (d *Drone) Land() {
	d.record("land")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateLanded
	d.stopLocked()
}

func (d *Drone) Halt() {
	d.record("halt")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateLanded
	d.stopLocked()
}

func (d *Drone) Reset() {
	d.record("reset")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateLanded
	d.stopLocked()
}

func (d *Drone) Hover() {
	d.record("hover")
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateLanded {
		d.state = StateHovering
	}
	d.stopLocked()
}

func (d *Drone) Trim() {
	d.record("trim")
}

func (d *Drone) Move(lr, rb, vv, va float64) {
	d.record("move", lr, rb, vv, va)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateLanded {
		return
	}
	d.state = StateFlying
	d.lr, d.rb, d.vv, d.va = lr, rb, vv, va
}

func (d *Drone) SetSpeed(v float64) {
	d.record("set_speed", v)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speed = v
}

// LatestTelemetry advances the frame counter and derives a snapshot from the
// current motion.
func (d *Drone) LatestTelemetry() domain.TelemetrySnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.frames++
	d.psi += d.va * maxAngle
	for d.psi > 180 {
		d.psi -= 360
	}
	for d.psi < -180 {
		d.psi += 360
	}

	altitude := 0
	if d.state != StateLanded {
		altitude = cruiseAltitude + int(d.vv*cruiseAltitude/2)
	}

	battery := 100 - int(d.frames/framesPerPct)
	if battery < 0 {
		battery = 0
	}

	return domain.TelemetrySnapshot{
		Phi:       int(d.lr * maxAngle),
		Theta:     int(d.rb * maxAngle),
		Psi:       int(d.psi),
		Altitude:  altitude,
		VX:        d.rb * maxVelocity,
		VY:        d.lr * maxVelocity,
		VZ:        d.vv * maxVelocity / 2,
		Battery:   battery,
		CtrlState: d.state << 16,
		NumFrames: d.frames,
	}
}

// Calls returns a copy of the recorded calls in order.
func (d *Drone) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Ops returns the names of the recorded calls in order.
func (d *Drone) Ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.calls))
	for _, c := range d.calls {
		out = append(out, c.Op)
	}
	return out
}

// Speed returns the last speed set.
func (d *Drone) Speed() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speed
}

func (d *Drone) record(op string, args ...float64) {
	now := d.clock.Now()
	d.mu.Lock()
	d.calls = append(d.calls, Call{Op: op, Args: args, At: now})
	d.mu.Unlock()
	d.logger.Debug("Simulated drone call", "op", op, "args", args)
}

func (d *Drone) stopLocked() {
	d.lr, d.rb, d.vv, d.va = 0, 0, 0, 0
}

func (d *Drone) LinkState() domain.LinkState {
	return domain.LinkSimulated
}
