package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnknownTenant     = errors.New("unknown tenant")
	ErrServiceNotFound   = errors.New("service not found")
	ErrBookingConflict   = errors.New("slot no longer available")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
)

// TransitionError reports a rejected lifecycle move. It matches
// ErrInvalidTransition under errors.Is.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("appointment already finalized (status %s)", e.From)
	}
	return fmt.Sprintf("cannot move appointment from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Finalized reports whether err was caused by acting on an appointment in a terminal state.
func Finalized(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.From.IsTerminal()
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
