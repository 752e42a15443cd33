// Package errors provides the gateway's structured error taxonomy.
//
// Codec errors (malformed payload, unknown command, invalid argument) are always
// recovered: logged, counted and discarded. Transport errors end the session.
// Actuator faults never leave the device adapter.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error for metrics and log fields.
type ErrorType string

const (
	// TypeMalformedPayload indicates the payload is not a JSON command object
	TypeMalformedPayload ErrorType = "malformed_payload"
	// TypeUnknownCommand indicates the command name is not supported
	TypeUnknownCommand ErrorType = "unknown_command"
	// TypeInvalidArgument indicates wrong arity or type of args
	TypeInvalidArgument ErrorType = "invalid_argument"
	// TypeTransport indicates the session connection failed
	TypeTransport ErrorType = "transport"
	// TypeActuatorFault indicates the device link rejected or lost a command
	TypeActuatorFault ErrorType = "actuator_fault"
	// TypeInternal indicates anything else
	TypeInternal ErrorType = "internal"
)

// Sentinels for errors.Is matching by type.
var (
	ErrMalformedPayload = &Error{Type: TypeMalformedPayload}
	ErrUnknownCommand   = &Error{Type: TypeUnknownCommand}
	ErrInvalidArgument  = &Error{Type: TypeInvalidArgument}
	ErrTransport        = &Error{Type: TypeTransport}
	ErrActuatorFault    = &Error{Type: TypeActuatorFault}
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// Recoverable reports whether the session survives this error.
func (e *Error) Recoverable() bool {
	switch e.Type {
	case TypeMalformedPayload, TypeUnknownCommand, TypeInvalidArgument, TypeActuatorFault:
		return true
	default:
		return false
	}
}

// MalformedPayload creates an error for payloads that are not command objects.
func MalformedPayload(message string, cause error) *Error {
	return newError(TypeMalformedPayload, message, cause)
}

// UnknownCommand creates an error for an unsupported command name.
func UnknownCommand(command string) *Error {
	return newError(TypeUnknownCommand, "unrecognized command", nil).WithContext("command", command)
}

// InvalidArgument creates an error for args of the wrong arity or type.
func InvalidArgument(command, message string) *Error {
	return newError(TypeInvalidArgument, message, nil).WithContext("command", command)
}

// TransportError creates a session-level error.
func TransportError(message string, cause error) *Error {
	return newError(TypeTransport, message, cause)
}

// ActuatorFault creates a device link error.
func ActuatorFault(operation string, cause error) *Error {
	return newError(TypeActuatorFault, "device link failed", cause).WithContext("operation", operation)
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// WithContext adds context fields to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// LogAttrs flattens the error into slog key/value pairs.
func (e *Error) LogAttrs() []any {
	attrs := make([]any, 0, 4+len(e.Context)*2)
	attrs = append(attrs, "error_type", string(e.Type), "error", e.Error())
	for k, v := range e.Context {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// AsStructuredError converts any error into a structured Error.
// If err is already an *Error, returns it unchanged.
// Otherwise wraps it as an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return newError(TypeInternal, "internal error", err)
}

// TypeOf returns the ErrorType of err, or TypeInternal for unstructured errors.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	return AsStructuredError(err).Type
}
