// Package domain defines the core domain types and interfaces.
//
// Commands, telemetry snapshots and the actuator contract live here so the codec,
// dispatcher, broadcaster and device adapters can share them without importing each other.
// No implementation code - just contracts.
package domain
