// Package apperr provides the domain error taxonomy shared by the calendar,
// application and lease services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how callers should react to them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindInternal      Kind = "internal"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human readable message
	Metadata map[string]string // Extra context (offending date, slot, ...)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind returns the kind the error's code belongs to.
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates a domain error carrying metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Annotate returns a copy of err with key=value added to its metadata and
// the value prefixed to its message. Non-domain errors are returned as is.
func Annotate(err error, key, value string) error {
	var de *Error
	if !errors.As(err, &de) {
		return err
	}
	md := make(map[string]string, len(de.Metadata)+1)
	for k, v := range de.Metadata {
		md[k] = v
	}
	md[key] = value
	return &Error{
		Code:     de.Code,
		Message:  value + ": " + de.Message,
		Metadata: md,
		Cause:    de.Cause,
	}
}

// CodeOf extracts the code of the first domain error in err's chain.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}

// KindOf classifies err. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	return CodeOf(err).Kind()
}

// IsKind reports whether err belongs to kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
