package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotExhausted means every lane at the requested slot is taken.
	ErrSlotExhausted = errors.New("booking: slot exhausted")
	// ErrSlotRestricted means a rescrutineering team asked for a slot ahead
	// of today's first attempts.
	ErrSlotRestricted = errors.New("booking: slot precedes first attempts")
)

// ValidationError reports a malformed request. Nothing was written.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %s", e.Field, e.Msg)
}

// EligibilityError reports a team that may not book the type yet.
type EligibilityError struct {
	Reason string
}

func (e *EligibilityError) Error() string {
	return "booking: not eligible: " + e.Reason
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
