// Package session drives one broker session from open to close.
//
// The Controller owns the session state, starts the telemetry broadcaster on
// open, feeds inbound messages through the command codec and dispatcher, and
// runs the safe-shutdown sequence (land, settle, halt, settle) exactly once
// when the session ends for any reason.
package session
