package domain

// Actuator is the facade over the remote drone. Calls are best-effort: they
// return once the instruction has been handed to the device link, not when the
// maneuver completes. Device faults are logged by the adapter, never returned.
type Actuator interface {
	TakeOff()
	Land()
	Halt()
	Reset()
	Hover()
	Trim()
	Move(lr, rb, vv, va float64)
	SetSpeed(v float64)

	// LatestTelemetry returns the most recently received snapshot without
	// blocking. It may be stale when the link is degraded.
	LatestTelemetry() TelemetrySnapshot
}

// LinkState describes the health of an actuator's device link.
type LinkState string

const (
	LinkUp        LinkState = "up"
	LinkProbing   LinkState = "probing"
	LinkDown      LinkState = "down"
	LinkSimulated LinkState = "simulated"
)

// LinkReporter is implemented by actuators that can report their link state.
type LinkReporter interface {
	LinkState() LinkState
}
