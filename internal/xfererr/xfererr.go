// Package xfererr defines the two-kind error taxonomy the core protocol
// signals on the wire: a resource that does not exist (mapped to
// FLAG_404) and any other local or peer failure (mapped to FLAG_500).
package xfererr

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Kind is the wire-level error category.
type Kind int

const (
	// DNE means the requested resource does not exist.
	DNE Kind = iota
	// Server means any other local or peer failure.
	Server
)

// Error wraps a cause with the wire-level kind it maps to. Cause() unwraps
// to the originating error for logging; the wire layer only ever inspects
// Kind.
type Error struct {
	kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return e.cause.Error()
}

// Cause returns the wrapped error, so logging can recover the original
// stack via errors.Cause.
func (e *Error) Cause() error { return e.cause }

// Kind returns the wire-level category.
func (e *Error) Kind() Kind { return e.kind }

func (k Kind) String() string {
	if k == DNE {
		return "DNE"
	}
	return "SERVER"
}

// NotFound builds a DNE error from a formatted message.
func NotFound(format string, args ...interface{}) error {
	return &Error{kind: DNE, cause: errors.Errorf(format, args...)}
}

// WrapNotFound wraps an existing error as a DNE error.
func WrapNotFound(cause error, msg string) error {
	return &Error{kind: DNE, cause: errors.Wrap(cause, msg)}
}

// Internal wraps a formatted message as a SERVER error.
func Internal(format string, args ...interface{}) error {
	return &Error{kind: Server, cause: errors.Errorf(format, args...)}
}

// WrapInternal wraps an existing error as a SERVER error.
func WrapInternal(cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &Error{kind: Server, cause: errors.Wrap(cause, msg)}
}

// KindOf returns the wire-level kind of err, defaulting to Server for any
// error not produced by this package (an unclassified local failure is
// always treated as a server error, never surfaced as 404).
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.kind
	}
	return Server
}
