// Package errs implements the discriminated error taxonomy every fallible
// pipeline stage returns: a tagged Kind plus enough context for the
// structured log line, never exception-style unwinding.
package errs

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind is one of the five failure categories a pipeline stage can signal.
type Kind string

const (
	// FetchError signals an upstream HTTP transport failure or non-2xx response.
	FetchError Kind = "FETCH_ERROR"
	// ParseError signals a malformed payload: not an array, or a line that
	// isn't valid JSON.
	ParseError Kind = "PARSE_ERROR"
	// ReadError signals an object-store get failure on a single child input.
	ReadError Kind = "READ_ERROR"
	// StorageError signals an object-store put failure.
	StorageError Kind = "STORAGE_ERROR"
	// ListError signals an object-store list failure.
	ListError Kind = "LIST_ERROR"
)

// Error carries a Kind alongside the wrapped cause and identifying context
// (bucket, key, URL) so callers can pattern-match on Kind to decide between
// aborting an invocation and skipping a single input.
type Error struct {
	Kind    Kind
	Context string
	cause   error
}

// New wraps cause with eris (for the stack trace it captures) and tags it
// with kind and a human-readable context string.
func New(kind Kind, context string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Context: context,
		cause:   eris.Wrap(cause, context),
	}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is a *Error with the same Kind, so callers can
// write errors.Is(err, errs.FetchError) style checks via KindOf below, or
// direct comparisons against a sentinel constructed with New(kind, "", nil).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is tagged with the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
