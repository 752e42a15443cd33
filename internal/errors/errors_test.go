package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMalformedPayload(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")
	err := MalformedPayload("payload is not JSON", cause)

	assert.Equal(t, TypeMalformedPayload, err.Type)
	assert.Equal(t, "payload is not JSON", err.Message)
	assert.Equal(t, cause, err.Cause)
	assert.NotNil(t, err.Context)
	assert.True(t, err.Recoverable())
	assert.Contains(t, err.Error(), "malformed_payload")
	assert.Contains(t, err.Error(), "unexpected end of JSON input")
}

func TestUnknownCommand(t *testing.T) {
	err := UnknownCommand("barrel_roll")

	assert.Equal(t, TypeUnknownCommand, err.Type)
	assert.Nil(t, err.Cause)
	assert.Equal(t, "barrel_roll", err.Context["command"])
	assert.True(t, err.Recoverable())
	assert.NotContains(t, err.Error(), "<nil>")
}

func TestInvalidArgument(t *testing.T) {
	err := InvalidArgument("move", "expected 4 values, got 2")

	assert.Equal(t, TypeInvalidArgument, err.Type)
	assert.Equal(t, "move", err.Context["command"])
	assert.True(t, err.Recoverable())
	assert.Contains(t, err.Error(), "expected 4 values, got 2")
}

func TestTransportError_NotRecoverable(t *testing.T) {
	err := TransportError("read failed", fmt.Errorf("connection reset"))

	assert.Equal(t, TypeTransport, err.Type)
	assert.False(t, err.Recoverable())
}

func TestActuatorFault(t *testing.T) {
	err := ActuatorFault("land", fmt.Errorf("sendto: network unreachable"))

	assert.Equal(t, TypeActuatorFault, err.Type)
	assert.Equal(t, "land", err.Context["operation"])
	assert.True(t, err.Recoverable())
}

func TestWithContextChaining(t *testing.T) {
	err := InvalidArgument("set_speed", "not a number").
		WithContext("arg", "fast").
		WithContext("index", 0)

	assert.Len(t, err.Context, 3)
	assert.Equal(t, "fast", err.Context["arg"])
	assert.Equal(t, 0, err.Context["index"])
}

func TestWithContextNilMap(t *testing.T) {
	err := &Error{
		Type:    TypeInternal,
		Message: "test",
		Context: nil,
	}

	err = err.WithContext("key", "value")

	assert.NotNil(t, err.Context)
	assert.Equal(t, "value", err.Context["key"])
}

func TestErrorsIs_MatchesByType(t *testing.T) {
	err := fmt.Errorf("decode: %w", UnknownCommand("flip"))

	assert.True(t, errors.Is(err, ErrUnknownCommand))
	assert.False(t, errors.Is(err, ErrMalformedPayload))
}

func TestErrorsIs_Cause(t *testing.T) {
	rootCause := fmt.Errorf("root")
	wrapped := TransportError("wrapped", rootCause)

	assert.True(t, errors.Is(wrapped, rootCause))
	assert.True(t, errors.Is(wrapped, ErrTransport))
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidArgument("move", "bad"))

	var target *Error
	require.True(t, errors.As(err, &target))
	assert.Equal(t, TypeInvalidArgument, target.Type)
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	original := UnknownCommand("x")
	assert.Equal(t, original, AsStructuredError(original))

	plain := fmt.Errorf("standard error")
	result := AsStructuredError(plain)
	assert.Equal(t, TypeInternal, result.Type)
	assert.Equal(t, plain, result.Cause)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(nil))
	assert.Equal(t, TypeMalformedPayload, TypeOf(MalformedPayload("x", nil)))
	assert.Equal(t, TypeInternal, TypeOf(fmt.Errorf("plain")))
}

func TestLogAttrs(t *testing.T) {
	attrs := UnknownCommand("flip").LogAttrs()

	require.Len(t, attrs, 6)
	assert.Equal(t, "error_type", attrs[0])
	assert.Equal(t, "unknown_command", attrs[1])
	assert.Equal(t, "command", attrs[4])
	assert.Equal(t, "flip", attrs[5])
}
