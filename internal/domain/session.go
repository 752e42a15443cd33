package domain

import "context"

// SessionConn is one duplex connection to the remote controller.
type SessionConn interface {
	// ReadMessage blocks until the next inbound payload arrives or the
	// connection fails. A clean close is reported as ErrSessionClosed.
	ReadMessage(ctx context.Context) ([]byte, error)

	// TrySend queues an outbound payload without blocking. It returns
	// ErrOutboundFull when the queue is saturated.
	TrySend(payload []byte) error

	Close() error
}

// Sender is the outbound half of a SessionConn.
type Sender interface {
	TrySend(payload []byte) error
}
