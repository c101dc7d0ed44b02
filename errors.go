package lsmdb

import (
	"errors"

	"github.com/Priyanshu23/lsmdb/errs"
)

// ErrNotFound is returned by Get when a key was never put, was deleted, or
// resolves to a tombstone. Check for it with errors.Is.
var ErrNotFound = errs.ErrNotFound

// Code re-exports the engine's error-kind taxonomy for callers that need
// to branch on more than presence/absence.
type Code = errs.Code

const (
	CodeNotFound        = errs.CodeNotFound
	CodeInvalidArgument = errs.CodeInvalidArgument
	CodeCorruption      = errs.CodeCorruption
	CodeSizeOverflow    = errs.CodeSizeOverflow
	CodeIO              = errs.CodeIO
	CodeUnrecoverable   = errs.CodeUnrecoverable
)

// ErrorCode extracts the Code from err, if it is or wraps an engine
// error, and a zero Code with ok false otherwise.
func ErrorCode(err error) (Code, bool) {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Code(), true
	}
	return "", false
}
