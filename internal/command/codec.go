package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kvasnica/wspydrone/internal/domain"
	apperrors "github.com/kvasnica/wspydrone/internal/errors"
)

type envelope struct {
	Command json.RawMessage `json:"command"`
	Args    json.RawMessage `json:"args"`
}

// Decode parses a payload of the form {"command": <name>, "args": <numbers>}.
// Move and SetSpeed values are clamped to [-1, 1] and the sampling period to
// [domain.MinSamplingPeriod, domain.MaxSamplingPeriod].
func Decode(payload []byte) (domain.Command, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, apperrors.MalformedPayload("payload is not a JSON object", err)
	}
	if len(env.Command) == 0 || string(env.Command) == "null" {
		return nil, apperrors.MalformedPayload("missing command field", nil)
	}

	var name string
	if err := json.Unmarshal(env.Command, &name); err != nil {
		return nil, apperrors.MalformedPayload("command field must be a string", err)
	}

	switch name {
	case domain.CommandPing:
		return domain.Ping{}, nil
	case domain.CommandTakeOff:
		return domain.TakeOff{}, nil
	case domain.CommandLand:
		return domain.Land{}, nil
	case domain.CommandHalt:
		return domain.Halt{}, nil
	case domain.CommandReset:
		return domain.Reset{}, nil
	case domain.CommandHover:
		return domain.Hover{}, nil
	case domain.CommandTrim:
		return domain.Trim{}, nil
	case domain.CommandMove:
		args, err := numericArgs(name, env.Args, 4)
		if err != nil {
			return nil, err
		}
		return domain.Move{
			LR: ClampUnit(args[0]),
			RB: ClampUnit(args[1]),
			VV: ClampUnit(args[2]),
			VA: ClampUnit(args[3]),
		}, nil
	case domain.CommandSetSpeed:
		args, err := numericArgs(name, env.Args, 1)
		if err != nil {
			return nil, err
		}
		return domain.SetSpeed{V: ClampUnit(args[0])}, nil
	case domain.CommandSetSampling:
		args, err := numericArgs(name, env.Args, 1)
		if err != nil {
			return nil, err
		}
		return domain.SetSampling{Period: ClampSampling(args[0])}, nil
	default:
		return nil, apperrors.UnknownCommand(name)
	}
}

// ClampUnit saturates v to [-1, 1].
func ClampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// ClampSampling converts a period in seconds to a duration saturated to the
// allowed sampling range.
func ClampSampling(seconds float64) time.Duration {
	minSec := domain.MinSamplingPeriod.Seconds()
	maxSec := domain.MaxSamplingPeriod.Seconds()
	switch {
	case seconds <= minSec:
		return domain.MinSamplingPeriod
	case seconds >= maxSec:
		return domain.MaxSamplingPeriod
	}
	return time.Duration(seconds * float64(time.Second))
}

// numericArgs accepts either a bare value or an array of values.
func numericArgs(name string, raw json.RawMessage, arity int) ([]float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, apperrors.InvalidArgument(name, fmt.Sprintf("expects %d numeric argument(s)", arity))
	}

	var items []json.RawMessage
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, apperrors.InvalidArgument(name, "args must be an array of numbers")
		}
	} else {
		items = []json.RawMessage{raw}
	}

	if len(items) != arity {
		return nil, apperrors.InvalidArgument(name, fmt.Sprintf("expects %d numeric argument(s), got %d", arity, len(items)))
	}

	out := make([]float64, 0, arity)
	for i, item := range items {
		v, err := parseNumber(item)
		if err != nil {
			return nil, apperrors.InvalidArgument(name, fmt.Sprintf("argument %d: %v", i, err)).
				WithContext("argument", i)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseNumber accepts a JSON number or a numeric string. Magnitudes beyond
// float64 saturate to ±Inf and are clamped by the caller; the literals
// "Inf" and "NaN" are rejected.
func parseNumber(raw json.RawMessage) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return 0, fmt.Errorf("not a number: %w", err)
	}

	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}

	f, err := strconv.ParseFloat(text, 64)
	if errors.Is(err, strconv.ErrRange) {
		return f, nil
	}
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", text)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %s", string(raw))
	}
	return f, nil
}
