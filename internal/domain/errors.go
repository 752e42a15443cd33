package domain

import "errors"

var (
	ErrSessionClosed = errors.New("session closed")
	ErrOutboundFull  = errors.New("outbound queue full")
)
