// Package xerrors implements the engine's error taxonomy: a small set of
// kinds that transport/httpapi maps to stable, machine-parseable client
// codes. The liquidation and funding sweeps do not inspect kinds; a
// failure on any one position aborts the whole run.
package xerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the taxonomy's error families.
type Kind string

// Recognized kinds.
const (
	// Validation covers malformed input, minimum/tick violations, and
	// cancelling an order that is already terminal.
	Validation Kind = "validation"
	// InsufficientFunds is raised when available balance is below the
	// amount required at lock or debit time.
	InsufficientFunds Kind = "insufficient_funds"
	// NotFound covers an order/position/wallet that does not exist or
	// is not owned by the caller.
	NotFound Kind = "not_found"
	// Conflict is a concurrent-update serialization failure; retriable.
	Conflict Kind = "conflict"
	// Oracle marks a degraded pricing result (stale cache, no fresh
	// fetch available). It never aborts a fill.
	Oracle Kind = "oracle"
	// Internal is an unexpected storage or logic fault; always aborts
	// the enclosing transaction.
	Internal Kind = "internal"
)

// Error is a typed, wrapped error carrying one taxonomy Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind, preserving err as the cause
// via github.com/pkg/errors so a stack trace survives into an Internal
// or Conflict classification at the storage boundary.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: errors.WithStack(err)}
}

// KindOf extracts the Kind of err if it (or a wrapped cause) is an
// *Error, defaulting to Internal for anything else so an un-annotated
// failure never silently looks like client-caused Validation.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsRetriable reports whether the caller should retry the operation
// (Conflict) rather than surface it as a terminal client failure.
func IsRetriable(err error) bool {
	return KindOf(err) == Conflict
}
