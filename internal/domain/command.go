package domain

import "time"

// Wire names of the supported commands.
const (
	CommandPing        = "ping"
	CommandTakeOff     = "takeoff"
	CommandLand        = "land"
	CommandHalt        = "halt"
	CommandReset       = "reset"
	CommandHover       = "hover"
	CommandTrim        = "trim"
	CommandMove        = "move"
	CommandSetSpeed    = "set_speed"
	CommandSetSampling = "set_sampling"
)

// Sampling period bounds for telemetry broadcasts.
const (
	MinSamplingPeriod     = 50 * time.Millisecond
	MaxSamplingPeriod     = 1000 * time.Second
	DefaultSamplingPeriod = 500 * time.Millisecond
)

// Command is a decoded inbound control message. The set of implementations is
// closed: only types in this package satisfy it.
type Command interface {
	Name() string
	isCommand()
}

type baseCommand struct{}

func (baseCommand) isCommand() {}

type Ping struct{ baseCommand }

type TakeOff struct{ baseCommand }

type Land struct{ baseCommand }

type Halt struct{ baseCommand }

type Reset struct{ baseCommand }

type Hover struct{ baseCommand }

type Trim struct{ baseCommand }

// Move tilts and turns the drone. All fields lie in [-1, 1].
type Move struct {
	baseCommand
	LR float64 // left-right tilt
	RB float64 // front-back tilt
	VV float64 // vertical speed
	VA float64 // angular speed
}

// SetSpeed changes the actuator speed. V lies in [-1, 1].
type SetSpeed struct {
	baseCommand
	V float64
}

// SetSampling changes the telemetry period. Period lies in
// [MinSamplingPeriod, MaxSamplingPeriod].
type SetSampling struct {
	baseCommand
	Period time.Duration
}

func (Ping) Name() string        { return CommandPing }
func (TakeOff) Name() string     { return CommandTakeOff }
func (Land) Name() string        { return CommandLand }
func (Halt) Name() string        { return CommandHalt }
func (Reset) Name() string       { return CommandReset }
func (Hover) Name() string       { return CommandHover }
func (Trim) Name() string        { return CommandTrim }
func (Move) Name() string        { return CommandMove }
func (SetSpeed) Name() string    { return CommandSetSpeed }
func (SetSampling) Name() string { return CommandSetSampling }

// PingReply is the only acknowledgement the gateway ever sends.
type PingReply struct {
	Ping string `json:"ping"`
}
