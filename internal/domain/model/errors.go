package model

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by every engine operation. Callers match them with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Specific conditions. Each one also matches its kind.
var (
	ErrCooldownActive  = kinded(ErrConflict, "opponent rejected a recent request")
	ErrOpenMatchExists = kinded(ErrConflict, "an open match already exists between the teams")
	ErrVenueBooked     = kinded(ErrConflict, "venue already booked on that date")
	ErrTeamBusy        = kinded(ErrConflict, "one of the teams already has a match on that date")
	ErrNoVenue         = kinded(ErrPreconditionFailed, "no common or home venue available")
	ErrDateInPast      = kinded(ErrInvalidInput, "cannot schedule a match in the past")
)

// kindedSentinel is a named condition that also reports its kind.
type kindedSentinel struct {
	kind error
	msg  string
}

func kinded(kind error, msg string) error { return &kindedSentinel{kind: kind, msg: msg} }

func (k *kindedSentinel) Error() string        { return k.msg }
func (k *kindedSentinel) Is(target error) bool { return target == k.kind }

// Error carries the failing operation together with its kind and cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil && !errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind builds an error of the given kind for op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind attaches op and kind to err.
func WrapKind(op string, kind error, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap attaches op to err and keeps whatever kind err already carries.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Invalidf builds an InvalidInput error with a formatted reason.
func Invalidf(op, format string, args ...any) error {
	return WrapKind(op, ErrInvalidInput, fmt.Errorf(format, args...))
}

var kinds = []error{ErrNotFound, ErrUnauthorized, ErrInvalidInput, ErrConflict, ErrPreconditionFailed}

// KindOf returns the kind carried by err, or nil when it has none.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName is the short label used in logs and metrics.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrInvalidInput:
		return "invalid_input"
	case ErrConflict:
		return "conflict"
	case ErrPreconditionFailed:
		return "precondition_failed"
	case nil:
		if err == nil {
			return "none"
		}
	}
	return "internal"
}
