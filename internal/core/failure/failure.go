// Package failure defines the provider-agnostic error kinds surfaced by the
// pipeline. Callers branch on Kind, never on provider-specific payloads.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failure
type Kind int

const (
	Unknown Kind = iota
	InvalidCycleKind
	AuthFailure
	RateLimited
	TransportFailure
	UnsupportedProvider
	MalformedResponse
	StorageFailure
	Canceled
)

// String returns the kind name used in logs and notifications
func (k Kind) String() string {
	switch k {
	case InvalidCycleKind:
		return "invalid_cycle_kind"
	case AuthFailure:
		return "auth_failure"
	case RateLimited:
		return "rate_limited"
	case TransportFailure:
		return "transport_failure"
	case UnsupportedProvider:
		return "unsupported_provider"
	case MalformedResponse:
		return "malformed_response"
	case StorageFailure:
		return "storage_failure"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error carries a Kind plus the operation and, for gateway failures, the
// provider and HTTP status involved.
type Error struct {
	Kind     Kind
	Op       string
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Provider != "" {
		msg += " (" + e.Provider
		if e.Status != 0 {
			msg += fmt.Sprintf(" %d", e.Status)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, failure.New(k, "", nil)) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// New creates a failure of the given kind
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a failure with a formatted cause
func Newf(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain. Cancellation and
// network errors that escaped classification are mapped as well.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Canceled
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return TransportFailure
	}
	return Unknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Fatal reports whether a failure must stop further calls for the current
// scope instead of being absorbed as a per-chunk placeholder.
func Fatal(err error) bool {
	switch KindOf(err) {
	case AuthFailure, RateLimited, UnsupportedProvider, Canceled:
		return true
	}
	return false
}
