// Package service holds the reservation engine and the read paths built
// on top of the store: snapshots for polling clients, the admin
// aggregate, and account provisioning.
package service

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that must react differently to a
// stale view, an empty wallet or a broken database.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindInsufficientBalance
	KindNotFound
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a typed business error.  Two errors match under errors.Is when
// their codes are equal, so a sentinel still matches after it was
// annotated with a cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// with returns a copy of e carrying cause.
func (e *Error) with(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

// withMessage returns a copy of e with a more specific message.
func (e *Error) withMessage(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrInvalidInput     = newError(KindValidation, "invalid_input", "Invalid input.")
	ErrInvalidAmount    = newError(KindValidation, "invalid_amount", "Amount must be greater than zero.")
	ErrInvalidReference = newError(KindValidation, "invalid_reference", "A valid UPI id is required.")

	ErrAlreadyParked   = newError(KindConflict, "already_parked", "You have already parked in another slot.")
	ErrSlotTaken       = newError(KindConflict, "slot_taken", "Slot is already occupied. Please refresh.")
	ErrStaleSlot       = newError(KindConflict, "stale_slot", "Slot changed since your last refresh. Please refresh.")
	ErrSlotNotOccupied = newError(KindConflict, "slot_not_occupied", "Slot is not occupied.")
	ErrNotSlotOwner    = newError(KindConflict, "not_slot_owner", "You can only unpark your own slot.")
	ErrDuplicateUser   = newError(KindConflict, "duplicate_user", "Username or email already registered.")

	ErrInsufficientBalance = newError(KindInsufficientBalance, "insufficient_balance", "Insufficient balance. Please recharge.")

	ErrUserNotFound = newError(KindNotFound, "user_not_found", "User not found.")
	ErrSlotNotFound = newError(KindNotFound, "slot_not_found", "Slot not found.")
	ErrNotParked    = newError(KindNotFound, "not_parked", "User is not parked.")

	ErrBusy     = newError(KindUnavailable, "busy", "Server is busy. Please retry.")
	ErrInternal = newError(KindInternal, "internal", "Internal error.")
)

// KindOf reports the kind of err.  Errors that are not *Error are
// internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError returns err as an *Error, converting unknown errors into
// ErrInternal with err as the cause.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.with(err)
}
