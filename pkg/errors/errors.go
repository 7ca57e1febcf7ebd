// Package errors provides structured error types for flowlines.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the scheduler, CLI and HTTP server
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The geometry codes map onto the recovery policy of the scheduler:
//   - MISSING_ANCHOR, DEGENERATE_GEOMETRY: reported in the snapshot, prior
//     geometry retained
//   - HOST_DETACHED: the pass is abandoned without publishing
//   - INVALID_*: input or configuration validation failures
//   - INTERNAL: unexpected failures (including recovered panics)
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDegenerateGeometry, "route %s has %d points", name, n)
//	if errors.Is(err, errors.ErrCodeDegenerateGeometry) {
//	    // keep the previous geometry
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidConfig, origErr, "decode %s", path)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Geometry errors
	ErrCodeMissingAnchor      Code = "MISSING_ANCHOR"
	ErrCodeDegenerateGeometry Code = "DEGENERATE_GEOMETRY"
	ErrCodeHostDetached       Code = "HOST_DETACHED"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Coder is implemented by errors that carry a Code without being an *Error.
type Coder interface {
	Code() Code
}

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
// The outermost coded error in the chain decides.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case Coder:
			return e.Code()
		}
		err = errors.Unwrap(err)
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

// MissingAnchorsError reports every required anchor that was absent from the
// layout host in a single pass.
type MissingAnchorsError struct {
	Names []string // Missing anchor names in required order
}

// MissingAnchors returns a MissingAnchorsError for names, or nil when names
// is empty.
func MissingAnchors(names []string) error {
	if len(names) == 0 {
		return nil
	}
	return &MissingAnchorsError{Names: append([]string(nil), names...)}
}

// Error implements the error interface.
func (e *MissingAnchorsError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("%s: missing anchor: %s", ErrCodeMissingAnchor, e.Names[0])
	}
	return fmt.Sprintf("%s: missing anchors: %s", ErrCodeMissingAnchor, strings.Join(e.Names, ", "))
}

// Code returns the error code for this error type.
func (e *MissingAnchorsError) Code() Code {
	return ErrCodeMissingAnchor
}

// MissingNames returns the missing anchor names carried anywhere in err's
// chain, or nil.
func MissingNames(err error) []string {
	var e *MissingAnchorsError
	if errors.As(err, &e) {
		return e.Names
	}
	return nil
}
