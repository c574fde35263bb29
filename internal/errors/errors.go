// Package errors provides structured error handling for osprey operations.
// It defines error codes, error types, and utilities for creating and
// classifying errors so callers can tell pre-flight failures (which abort
// a command) apart from per-probe failures (which become outcomes).
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"

	// Pre-flight errors. These abort a command before any probe is sent.
	CodeParse             ErrorCode = "PARSE"
	CodeGuardrailExceeded ErrorCode = "GUARDRAIL_EXCEEDED"

	// Per-probe errors. These are recorded on the outcome and never
	// propagate past the prober.
	CodeTimeout  ErrorCode = "TIMEOUT"
	CodeCanceled ErrorCode = "CANCELED"
	CodeNetwork  ErrorCode = "NETWORK"
	CodeNoRecord ErrorCode = "NO_RECORD"

	// External source errors.
	CodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"

	// Storage errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
)

// ProbeError represents an error tied to a single probe unit or target.
type ProbeError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// NewProbeError creates a new probe error with the specified code and message.
func NewProbeError(code ErrorCode, message string) *ProbeError {
	return &ProbeError{Code: code, Message: message}
}

// NewProbeErrorWithTarget creates a probe error for a specific target.
func NewProbeErrorWithTarget(code ErrorCode, message, target string) *ProbeError {
	return &ProbeError{Code: code, Message: message, Target: target}
}

// WrapProbeError wraps an existing error as a probe error.
func WrapProbeError(code ErrorCode, message string, err error) *ProbeError {
	return &ProbeError{Code: code, Message: message, Cause: err}
}

// WrapProbeErrorWithTarget wraps an error with target information.
func WrapProbeErrorWithTarget(code ErrorCode, message, target string, err error) *ProbeError {
	return &ProbeError{Code: code, Message: message, Target: target, Cause: err}
}

// ParseError represents a target or port specification parse failure.
type ParseError struct {
	Input   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("[%s] %s (input: %q)", CodeParse, e.Message, e.Input)
	}
	return fmt.Sprintf("[%s] %s", CodeParse, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a parse error for the given input string.
func NewParseError(input, message string) *ParseError {
	return &ParseError{Input: input, Message: message}
}

// WrapParseError wraps an existing error as a parse error.
func WrapParseError(input, message string, err error) *ParseError {
	return &ParseError{Input: input, Message: message, Cause: err}
}

// GuardrailError reports a batch that expanded past the configured ceiling.
type GuardrailError struct {
	Units   int
	Ceiling int
}

// Error implements the error interface.
func (e *GuardrailError) Error() string {
	return fmt.Sprintf("[%s] batch of %d units exceeds ceiling of %d (use the override flag to proceed)",
		CodeGuardrailExceeded, e.Units, e.Ceiling)
}

// NewGuardrailError creates a guardrail error naming the offending count.
func NewGuardrailError(units, ceiling int) *GuardrailError {
	return &GuardrailError{Units: units, Ceiling: ceiling}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{Code: code, Message: message}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{Code: code, Message: message, Field: field, Value: value}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{Code: code, Message: message, Cause: err}
}

// StoreError represents scan history storage errors.
type StoreError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// WrapStoreError wraps an existing error as a store error.
func WrapStoreError(code ErrorCode, message, operation string, err error) *StoreError {
	return &StoreError{Code: code, Message: message, Operation: operation, Cause: err}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ProbeError:
		return e.Code
	case *ParseError:
		return CodeParse
	case *GuardrailError:
		return CodeGuardrailExceeded
	case *ConfigError:
		return e.Code
	case *StoreError:
		return e.Code
	}
	return CodeUnknown
}

// IsPreflight determines if an error must abort the command before any
// probe traffic is sent.
func IsPreflight(err error) bool {
	switch GetCode(err) {
	case CodeParse, CodeGuardrailExceeded, CodeValidation, CodeConfiguration:
		return true
	default:
		return false
	}
}

// IsNegativeResult reports whether an error represents a normal negative
// answer (such as a missing PTR record) rather than a transport failure.
func IsNegativeResult(err error) bool {
	return GetCode(err) == CodeNoRecord
}

// Common error creation functions

// ErrInvalidTarget creates an error for invalid scan targets.
func ErrInvalidTarget(target string) *ParseError {
	return NewParseError(target, "invalid target specification: use an IP, CIDR, range, or domain")
}

// ErrProbeTimeout creates an error for a probe that exceeded its deadline.
func ErrProbeTimeout(target string) *ProbeError {
	return NewProbeErrorWithTarget(CodeTimeout, "probe timed out", target)
}

// ErrNoRecord creates the normal negative outcome for a lookup with no answer.
func ErrNoRecord(target string) *ProbeError {
	return NewProbeErrorWithTarget(CodeNoRecord, "no record found", target)
}

// ErrUpstreamUnavailable creates an error for an unreachable external source.
func ErrUpstreamUnavailable(source string, err error) *ProbeError {
	return WrapProbeErrorWithTarget(CodeUpstreamUnavailable, "upstream source unavailable", source, err)
}
