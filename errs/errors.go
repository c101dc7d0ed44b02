// Package errs defines the error taxonomy shared by every layer of the
// storage engine: a small set of codes that callers can branch on with
// errors.Is/errors.As, plus a wrapping type that carries the offending
// operation's context (segment id, offset, path) the way a log line would.
package errs

import (
	"errors"
	"fmt"
)

// Code categorizes a failure into one of the kinds the engine contract
// promises to propagate to callers.
type Code string

const (
	// CodeNotFound means the key is absent or resolved to a tombstone.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInvalidArgument means a key or value violated a size bound.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeCorruption means a CRC mismatch, truncated record, or malformed
	// header was found while decoding a block.
	CodeCorruption Code = "CORRUPTION"

	// CodeSizeOverflow means a block or record construction would exceed a
	// hard size bound.
	CodeSizeOverflow Code = "SIZE_OVERFLOW"

	// CodeIO means an underlying filesystem operation failed.
	CodeIO Code = "IO"

	// CodeUnrecoverable means corruption was found in a non-tail segment
	// during recovery, or a compactor chain swap left the index chain
	// inconsistent.
	CodeUnrecoverable Code = "UNRECOVERABLE"
)

// Error is the engine's wrapping error type. It implements Unwrap so
// errors.Is/errors.As see through to the underlying cause.
type Error struct {
	cause   error
	message string
	code    Code
	details map[string]any
}

// New creates an Error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap creates an Error that wraps an existing error, preserving it for
// errors.Is/errors.As while attaching a code and a human-readable message.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{cause: cause, code: code, message: message}
}

// WithDetail attaches a piece of structured context (e.g. segment id,
// offset, path) for logging. The details map is lazily allocated.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Code returns the error's category.
func (e *Error) Code() Code {
	return e.code
}

// Details returns the structured context attached via WithDetail.
func (e *Error) Details() map[string]any {
	return e.details
}

// HasCode reports whether err is or wraps an *Error, and the first such
// *Error found by errors.As carries code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.code == code
	}
	return false
}

// ErrNotFound is the sentinel returned whenever a lookup resolves to
// nothing live: an absent key, or a key whose newest value is a tombstone.
var ErrNotFound = New(CodeNotFound, "key not found")
