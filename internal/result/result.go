// Package result defines the error taxonomy shared by every tool operation.
// Core operations return (value, error) where the error carries one of the
// kinds below; the MCP layer stringifies them uniformly. Safety checks are
// fail-closed: an unclassifiable error is reported, never ignored.
package result

import (
	"context"
	"errors"
	"fmt"
)

// Kind labels an error class for the tool surface.
type Kind string

const (
	KindConfig     Kind = "config_error"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindDependency Kind = "dependency"
	KindTimeout    Kind = "timeout"
	KindInternal   Kind = "internal"
)

// Error is a classified operation failure.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
// A nil cause returns nil so call sites can wrap unconditionally.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func Configf(format string, args ...any) *Error     { return New(KindConfig, format, args...) }
func NotFoundf(format string, args ...any) *Error   { return New(KindNotFound, format, args...) }
func Forbiddenf(format string, args ...any) *Error  { return New(KindForbidden, format, args...) }
func Conflictf(format string, args ...any) *Error   { return New(KindConflict, format, args...) }
func Validationf(format string, args ...any) *Error { return New(KindValidation, format, args...) }
func Dependencyf(format string, args ...any) *Error { return New(KindDependency, format, args...) }
func Timeoutf(format string, args ...any) *Error    { return New(KindTimeout, format, args...) }
func Internalf(format string, args ...any) *Error   { return New(KindInternal, format, args...) }

// KindOf classifies any error. Context cancellation maps to timeout;
// everything unrecognized is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the human half of a classified error, or err.Error()
// for unclassified ones.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
