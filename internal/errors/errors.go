// Package errors provides structured error types for the jsaot debug
// server. These errors include hints that guide the caller to correct
// course when something goes wrong.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a category of error for programmatic handling
type ErrorCode string

const (
	// Record errors
	CodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	CodeRecordInvalid  ErrorCode = "RECORD_INVALID"

	// Session errors
	CodeNotAttached  ErrorCode = "NOT_ATTACHED"
	CodeNotSuspended ErrorCode = "NOT_SUSPENDED"

	// Adapter errors
	CodeAdapterConnectFailed ErrorCode = "ADAPTER_CONNECT_FAILED"

	// Parameter errors
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Permission errors
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// Breakpoint errors
	CodeBreakpointNotFound ErrorCode = "BREAKPOINT_NOT_FOUND"

	// Mapping errors
	CodeUnknownSourceFile ErrorCode = "UNKNOWN_SOURCE_FILE"
)

// DebugError is a structured error type that includes enough context for
// the caller to understand what went wrong and how to fix it.
type DebugError struct {
	// Code is a machine-readable error category
	Code ErrorCode `json:"code"`

	// Message is a human-readable description of what went wrong
	Message string `json:"message"`

	// Hint provides actionable guidance on how to fix the error
	Hint string `json:"hint,omitempty"`

	// Details contains additional context (e.g., the invalid value)
	Details map[string]interface{} `json:"details,omitempty"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *DebugError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Hint != "" {
		sb.WriteString(" | Hint: ")
		sb.WriteString(e.Hint)
	}

	return sb.String()
}

// Unwrap returns the underlying error for error chaining
func (e *DebugError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *DebugError) WithDetails(key string, value interface{}) *DebugError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *DebugError) WithCause(err error) *DebugError {
	e.Cause = err
	return e
}

// --- Record Errors ---

// RecordNotFound creates an error for a script with no record file
func RecordNotFound(script string) *DebugError {
	return &DebugError{
		Code:    CodeRecordNotFound,
		Message: fmt.Sprintf("no debug information record found for script '%s'", script),
		Hint:    "Check that the compiler emitted the record next to the generated script and that the records root is configured correctly.",
		Details: map[string]interface{}{
			"script": script,
		},
	}
}

// RecordInvalid creates an error for a record that fails to decode
func RecordInvalid(path string, err error) *DebugError {
	return &DebugError{
		Code:    CodeRecordInvalid,
		Message: fmt.Sprintf("debug information record '%s' is malformed: %v", path, err),
		Hint:    "The record may be truncated or produced by an incompatible compiler version. Rebuild the project to regenerate it.",
		Cause:   err,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// --- Session Errors ---

// NotAttached creates an error for operations that need a live session
func NotAttached(operation string) *DebugError {
	return &DebugError{
		Code:    CodeNotAttached,
		Message: fmt.Sprintf("%s requires an attached debug session", operation),
		Hint:    "The session is detached. Check that the engine's debug adapter is running and reachable.",
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NotSuspended creates an error for operations that need a paused debuggee
func NotSuspended(operation string) *DebugError {
	return &DebugError{
		Code:    CodeNotSuspended,
		Message: fmt.Sprintf("%s requires a suspended debuggee", operation),
		Hint:    "Use debug_pause or wait for a breakpoint to hit before inspecting the stack.",
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// --- Adapter Errors ---

// AdapterConnectFailed creates an error when connecting to the adapter fails
func AdapterConnectFailed(address string, err error) *DebugError {
	return &DebugError{
		Code:    CodeAdapterConnectFailed,
		Message: fmt.Sprintf("failed to connect to debug adapter at %s: %v", address, err),
		Hint:    "The debug adapter may not be running. Start the engine with debugging enabled and check the configured address.",
		Cause:   err,
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// --- Parameter Errors ---

// MissingParameter creates an error for missing required parameters
func MissingParameter(paramName, description string) *DebugError {
	return &DebugError{
		Code:    CodeMissingParameter,
		Message: fmt.Sprintf("required parameter '%s' is missing", paramName),
		Hint:    description,
		Details: map[string]interface{}{
			"parameter": paramName,
		},
	}
}

// InvalidParameter creates an error for invalid parameter values
func InvalidParameter(paramName string, value interface{}, expected string) *DebugError {
	return &DebugError{
		Code:    CodeInvalidParameter,
		Message: fmt.Sprintf("invalid value for parameter '%s': %v", paramName, value),
		Hint:    fmt.Sprintf("Expected: %s", expected),
		Details: map[string]interface{}{
			"parameter": paramName,
			"value":     value,
			"expected":  expected,
		},
	}
}

// --- Permission Errors ---

// PermissionDenied creates an error for operations disabled by the mode
func PermissionDenied(operation, mode string) *DebugError {
	return &DebugError{
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("%s is not allowed in current server mode", operation),
		Hint:    fmt.Sprintf("The server is running in '%s' mode. Execution control requires 'full' mode.", mode),
		Details: map[string]interface{}{
			"operation": operation,
			"mode":      mode,
		},
	}
}

// --- Breakpoint Errors ---

// BreakpointNotFound creates an error for an unknown breakpoint ID
func BreakpointNotFound(id string) *DebugError {
	return &DebugError{
		Code:    CodeBreakpointNotFound,
		Message: fmt.Sprintf("breakpoint '%s' not found", id),
		Hint:    "Use debug_list_breakpoints to see current breakpoints.",
		Details: map[string]interface{}{
			"breakpointId": id,
		},
	}
}

// --- Mapping Errors ---

// UnknownSourceFile creates an error for a source file no record covers
func UnknownSourceFile(fileName string) *DebugError {
	return &DebugError{
		Code:    CodeUnknownSourceFile,
		Message: fmt.Sprintf("no loaded script covers source file '%s'", fileName),
		Hint:    "The breakpoint stays pending and becomes valid once a covering script is loaded. Check the file name against debug_status output.",
		Details: map[string]interface{}{
			"fileName": fileName,
		},
	}
}

// --- Helper for wrapping generic errors ---

// Wrap wraps a generic error with context
func Wrap(code ErrorCode, message string, hint string, err error) *DebugError {
	return &DebugError{
		Code:    code,
		Message: message,
		Hint:    hint,
		Cause:   err,
	}
}

// FromError creates a DebugError from a generic error, preserving any
// existing structure
func FromError(err error) *DebugError {
	var de *DebugError
	if stderrors.As(err, &de) {
		return de
	}
	return &DebugError{
		Code:    "UNKNOWN_ERROR",
		Message: err.Error(),
		Cause:   err,
	}
}
