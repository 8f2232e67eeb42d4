package lifecycle

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the engine reports. The engine never
// retries internally; callers decide what to do with each kind.
type ErrorKind string

const (
	KindInvalidInput    ErrorKind = "INVALID_INPUT"
	KindInvalidValue    ErrorKind = "INVALID_VALUE"
	KindInvalidState    ErrorKind = "INVALID_STATE"
	KindUnauthorized    ErrorKind = "UNAUTHORIZED"
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindNotOwner        ErrorKind = "NOT_OWNER"
	KindAlreadyRedeemed ErrorKind = "ALREADY_REDEEMED"
	KindAlreadyIssued   ErrorKind = "ALREADY_ISSUED"
	KindRequestInFlight ErrorKind = "REQUEST_IN_FLIGHT"
	KindMissingReason   ErrorKind = "MISSING_REASON"
	KindMissingValue    ErrorKind = "MISSING_VALUE"
	KindEscrowFailure   ErrorKind = "ESCROW_FAILURE"
)

// Error carries a kind alongside the underlying cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an engine error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool { return KindOf(err) == kind }
