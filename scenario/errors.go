package scenario

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingScenario is returned by accessors and mutators called while the
// handle has no scenario id.
var ErrMissingScenario = errors.New("scenario: no scenario id set")

// ErrCurveNotAttached is returned when reading a custom curve the scenario
// has no upload for.
var ErrCurveNotAttached = errors.New("scenario: custom curve not attached")

// MissingScenarioError names the operation that needed a scenario id.
type MissingScenarioError struct {
	Op string
}

func (e *MissingScenarioError) Error() string {
	if e.Op == "" {
		return ErrMissingScenario.Error()
	}
	return ErrMissingScenario.Error() + " (" + e.Op + ")"
}

func (e *MissingScenarioError) Unwrap() error { return ErrMissingScenario }

// ScenarioNotFoundError indicates an id was rejected by the engine's
// existence check.
type ScenarioNotFoundError struct {
	ID  ID
	Err error
}

func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario: scenario %s not found", e.ID)
}

func (e *ScenarioNotFoundError) Unwrap() error { return e.Err }

// MalformedHeaderError indicates a header field could not be parsed.
type MalformedHeaderError struct {
	Field string
	Value any
	Err   error
}

func (e *MalformedHeaderError) Error() string {
	msg := fmt.Sprintf("scenario: malformed header field %q (%v)", e.Field, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedHeaderError) Unwrap() error { return e.Err }

// InvalidOrderError indicates a proposed order names an item that is not in
// the engine's current order.
type InvalidOrderError struct {
	Order string
	Item  string
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("scenario: %q is not an item of the current %s", e.Item, e.Order)
}

// ProtectedFieldError indicates a direct write to a field that only a
// dedicated mutator may change.
type ProtectedFieldError struct {
	Field string
	Use   string
}

func (e *ProtectedFieldError) Error() string {
	msg := fmt.Sprintf("scenario: %s cannot be assigned directly", e.Field)
	if e.Use != "" {
		msg += "; use " + e.Use
	}
	return msg
}

// UnknownCurveError indicates a curve name with no registered resource.
type UnknownCurveError struct {
	Name      string
	Available []string
}

func (e *UnknownCurveError) Error() string {
	avail := append([]string(nil), e.Available...)
	sort.Strings(avail)
	return fmt.Sprintf("scenario: unknown curve %q (available: %s)", e.Name, strings.Join(avail, ", "))
}

// UnknownCustomCurveError indicates a key the scenario has no custom curve
// slot for.
type UnknownCustomCurveError struct {
	Key string
}

func (e *UnknownCustomCurveError) Error() string {
	return fmt.Sprintf("scenario: %q is not a custom curve key", e.Key)
}
