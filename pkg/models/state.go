package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidState is returned when a value is not one of the known availability states.
var ErrInvalidState = errors.New("invalid availability state")

// AvailabilityState is the reachability of an AI serving backend.
type AvailabilityState string

const (
	StateDown     AvailabilityState = "down"
	StateChanging AvailabilityState = "changing"
	StateUp       AvailabilityState = "up"
)

// States lists every valid state in transition order.
var States = []AvailabilityState{StateDown, StateChanging, StateUp}

// Valid reports whether s is one of the enumerated states.
func (s AvailabilityState) Valid() bool {
	switch s {
	case StateDown, StateChanging, StateUp:
		return true
	default:
		return false
	}
}

func (s AvailabilityState) String() string {
	return string(s)
}

// ParseState converts a raw token into an AvailabilityState.
// Surrounding whitespace is ignored, case is not.
func ParseState(raw string) (AvailabilityState, error) {
	state := AvailabilityState(strings.TrimSpace(raw))
	if !state.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, raw)
	}
	return state, nil
}

// StatePayload is the body exchanged with the state store: {"state": "..."}.
type StatePayload struct {
	State AvailabilityState `json:"state"`
}
