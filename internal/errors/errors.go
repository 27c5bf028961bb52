// Package errors classifies application errors so handlers can turn them
// into user-facing replies.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents the type of error.
type Kind int

const (
	ErrInternal Kind = iota
	ErrNotFound
	ErrValidation
	ErrConflict
	ErrCorruption
	ErrExternal
)

func (k Kind) String() string {
	switch k {
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation"
	case ErrConflict:
		return "conflict"
	case ErrCorruption:
		return "corruption"
	case ErrExternal:
		return "external"
	default:
		return "internal"
	}
}

// Error is an application-level error with a kind for classification.
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func Corruptionf(format string, args ...any) *Error {
	return &Error{Kind: ErrCorruption, Message: fmt.Sprintf(format, args...)}
}

// External wraps a failure of the messaging platform or another outbound service.
func External(err error, msg string) *Error {
	return &Error{Kind: ErrExternal, Message: msg, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: ErrInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of the first *Error in the chain, ErrInternal otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return stderrors.As(err, &appErr) && appErr.Kind == kind
}

// Message returns the user-facing message of an *Error, or the fallback.
func Message(err error, fallback string) string {
	var appErr *Error
	if stderrors.As(err, &appErr) && appErr.Kind != ErrInternal {
		return appErr.Message
	}
	return fallback
}
