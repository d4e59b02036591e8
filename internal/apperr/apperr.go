// Package apperr defines the error kinds shared by the store, the services and
// the HTTP layer. Every error that crosses a package boundary carries one.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, distinguishable error category.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindStateConflict     Kind = "STATE_CONFLICT"
	KindForbidden         Kind = "FORBIDDEN"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindGateway           Kind = "GATEWAY_ERROR"
	KindUnauthenticated   Kind = "UNAUTHENTICATED"
	KindConflict          Kind = "CONFLICT"
	KindInternal          Kind = "INTERNAL"
)

// Error is a typed failure with a human-readable message.
type Error struct {
	Kind    Kind
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

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// NotFound is shorthand for New(KindNotFound, ...).
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Validation is shorthand for New(KindValidation, ...).
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// StateConflict is shorthand for New(KindStateConflict, ...).
func StateConflict(format string, args ...any) *Error {
	return New(KindStateConflict, format, args...)
}

// Forbidden is shorthand for New(KindForbidden, ...).
func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}
