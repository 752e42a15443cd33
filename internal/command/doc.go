// Package command turns inbound session payloads into typed domain commands
// and applies them to the actuator or the session state.
//
// Decode is pure: it validates and clamps arguments and has no side effects.
// Dispatcher owns every side effect, including the audit log line written for
// each dispatched command.
package command
