// Package broadcast streams telemetry snapshots to the open session.
//
// The Broadcaster runs one goroutine per session. Each cycle arms the timer for
// the next cycle before polling the actuator, so the period is measured between
// schedule events and a slow send delays, but never overlaps, the next cycle.
package broadcast
