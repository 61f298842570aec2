// Package errors provides structured CLI error types for capcon.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output across all commands.
package errors

import (
	"errors"
	"fmt"
)

// Exit codes for CLI errors.
const (
	ExitSuccess = 0  // Successful execution
	ExitGeneral = 1  // General error
	ExitConfig  = 4  // Configuration error
	ExitHost    = 7  // Host byte source or registration failure
	ExitUsage   = 64 // Command line usage error (BSD convention)
)

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// ConfigInvalid returns an error for configuration that fails validation.
func ConfigInvalid(cause error) *CLIError {
	return &CLIError{
		Message: "Invalid configuration",
		Hint:    "Run 'capcon config list' to inspect the effective settings",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// RegistrationFailed returns an error when the console service cannot register.
func RegistrationFailed(cause error) *CLIError {
	return &CLIError{
		Message: "Failed to register system console user interface",
		Hint:    "Check that no other console service is running on this host",
		Cause:   cause,
		Code:    ExitHost,
	}
}

// ConsoleFailed returns an error for an unrecoverable host failure while the
// console was running.
func ConsoleFailed(cause error) *CLIError {
	return &CLIError{
		Message: "Console stopped after an unexpected host error",
		Hint:    "Run with --log-level=debug --log-file <path> for details",
		Cause:   cause,
		Code:    ExitHost,
	}
}

// CapsuleStartFailed returns an error when a configured capsule cannot start.
func CapsuleStartFailed(id int, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to start capsule %d", id),
		Hint:    "Check the capsule command in your capcon config",
		Cause:   cause,
		Code:    ExitHost,
	}
}

// HypervisorSourceFailed returns an error when the hypervisor source cannot be opened.
func HypervisorSourceFailed(path string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to open hypervisor source: %s", path),
		Hint:    "Check hypervisor.source in your capcon config",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// InputUnavailable returns an error when local input cannot be attached.
func InputUnavailable(cause error) *CLIError {
	return &CLIError{
		Message: "Cannot read local input",
		Hint:    "Set console.raw_input to false or run capcon from a terminal",
		Cause:   cause,
		Code:    ExitHost,
	}
}

// MetricsFailed returns an error when the metrics endpoint cannot serve.
func MetricsFailed(addr string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Metrics endpoint failed on %s", addr),
		Hint:    "Choose a free address with --metrics-addr or leave it empty to disable metrics",
		Cause:   cause,
		Code:    ExitGeneral,
	}
}
