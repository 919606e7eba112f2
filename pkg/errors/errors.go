// Package errors provides structured error types for restoretrace.
//
// Errors carry a machine-readable [Code] so the CLI can distinguish data
// problems in a restore log (which abort processing of that file) from
// transport failures and internal faults.
//
// # Error Codes
//
// Codes follow a hierarchical naming convention:
//   - INVALID_*: Malformed input (log lines, graph files, arguments)
//   - MISSING_*, UNMATCHED_*: Structurally incomplete logs
//   - GRAPH_*: Graph integrity violations
//   - NETWORK_*: Transport failures
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidLog, "unknown status code %q", tok)
//	if errors.Is(err, errors.ErrCodeInvalidLog) {
//	    // Abort this log file
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "fetch %s", url)
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidLog   Code = "INVALID_LOG"
	ErrCodeInvalidGraph Code = "INVALID_GRAPH"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Incomplete restore logs
	ErrCodeMissingSources    Code = "MISSING_SOURCES"
	ErrCodeUnmatchedResponse Code = "UNMATCHED_RESPONSE"

	// Graph integrity
	ErrCodeGraphCycle Code = "GRAPH_CYCLE"

	// Resource errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Network errors
	ErrCodeNetwork      Code = "NETWORK_ERROR"
	ErrCodeTimeout      Code = "TIMEOUT"
	ErrCodeUnauthorized Code = "UNAUTHORIZED"

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

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// As is [errors.As] from the standard library.
func As(err error, target any) bool { return errors.As(err, target) }

// IsCanceled reports whether err is, or wraps, context cancellation or an
// expired deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
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

// LineError locates a data error at a specific line of an input file.
// The restore log parser returns it for every malformed or inconsistent line.
type LineError struct {
	Path string // File path, empty when parsing from a reader
	Line int    // 1-based line number
	Text string // Offending line
	Err  error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s:%d: %v (line: %q)", e.Path, e.Line, e.Err, e.Text)
	}
	return fmt.Sprintf("line %d: %v (line: %q)", e.Line, e.Err, e.Text)
}

// Unwrap returns the underlying error.
func (e *LineError) Unwrap() error { return e.Err }
