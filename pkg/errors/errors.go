// Package errors provides structured error types for jarprobe.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the resolver packages
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - NOT_FOUND_*: Resource not found
//   - NETWORK_*: Network-related errors
//   - INTERNAL_*: Unexpected internal errors
//
// Codes that end a run (schema mismatch, unreadable archive, exhausted
// retries, unreachable search index, missing tool) are reported by
// [IsFatal].
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidProxy, "bad proxy entry: %s", entry)
//	if errors.Is(err, errors.ErrCodeInvalidProxy) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeArchiveUnreadable, origErr, "read %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidProxy  Code = "INVALID_PROXY"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"
	ErrCodeNoRepository Code = "NO_REPOSITORY"

	// Local input errors
	ErrCodeArchiveUnreadable Code = "ARCHIVE_UNREADABLE"
	ErrCodeSchemaMismatch    Code = "SCHEMA_MISMATCH"
	ErrCodeToolMissing       Code = "TOOL_MISSING"

	// Network errors
	ErrCodeNetwork           Code = "NETWORK_ERROR"
	ErrCodeTimeout           Code = "TIMEOUT"
	ErrCodeRetryExhausted    Code = "RETRY_EXHAUSTED"
	ErrCodeSearchUnavailable Code = "SEARCH_UNAVAILABLE"
	ErrCodeNoEgress          Code = "NO_EGRESS"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// As is errors.As from the standard library, re-exported so callers
// importing this package need not alias the standard one.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err carries a code that terminates a run.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeArchiveUnreadable,
		ErrCodeSchemaMismatch,
		ErrCodeToolMissing,
		ErrCodeRetryExhausted,
		ErrCodeSearchUnavailable,
		ErrCodeNoEgress,
		ErrCodeNoRepository:
		return true
	}
	return false
}
