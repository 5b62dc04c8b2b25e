// Package domain provides shared domain-level error types and sentinels.
package domain

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error code carried on every
// non-success API response.
type Code string

const (
	CodeInvalidInput  Code = "invalid_input"
	CodeNotFound      Code = "not_found"
	CodeConflict      Code = "conflict"
	CodeRunTerminated Code = "run_terminated"
	CodeCancelled     Code = "cancelled"
	CodeInternal      Code = "internal"
)

// Retryable reports whether a client should retry a request that failed
// with the given code. Conflict is retryable after a refetch; internal
// errors are left to caller judgment and reported retryable.
func (c Code) Retryable() bool {
	switch c {
	case CodeConflict, CodeInternal:
		return true
	default:
		return false
	}
}

// Error is a coded domain error. Use the constructors below so errors.Is
// works against the matching sentinel.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, including the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrConflict      = &Error{Code: CodeConflict, Message: "resource was modified by another request"}
	ErrValidation    = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrRunTerminated = &Error{Code: CodeRunTerminated, Message: "run already reached a terminal state"}
)

// NotFoundf returns a not_found error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Invalidf returns an invalid_input error with a formatted message.
func Invalidf(format string, args ...any) error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Conflictf returns a conflict error with a formatted message.
func Conflictf(format string, args ...any) error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code, defaulting to internal for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
