package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig  = "CONFIG"
	ErrLock    = "LOCK"
	ErrConn    = "CONN"
	ErrSample  = "SAMPLE"
	ErrCommand = "COMMAND"
	ErrExec    = "EXEC"
)

// Process exit statuses for fatal error categories.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitConfig         = 2
	ExitAlreadyRunning = 3
	ExitConnect        = 4
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var aErr *Error
	if errors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}

// ExitCode maps an error to the process exit status the agent should use.
// Only configuration, lock and startup connection failures get dedicated codes.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var aErr *Error
	if !errors.As(err, &aErr) {
		return ExitFailure
	}
	switch aErr.Code {
	case ErrConfig:
		return ExitConfig
	case ErrLock:
		return ExitAlreadyRunning
	case ErrConn:
		return ExitConnect
	default:
		return ExitFailure
	}
}

// Summary renders err on one line for log output: the message of a
// structured error followed by its cause, without the suggestion.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	var aErr *Error
	if !errors.As(err, &aErr) {
		return strings.TrimSpace(err.Error())
	}
	if aErr.Cause == nil {
		return aErr.Message
	}
	return aErr.Message + ": " + Summary(aErr.Cause)
}
