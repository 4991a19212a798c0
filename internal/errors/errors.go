// Package errors provides structured error handling for modscan operations.
// It defines error codes, error types, and utilities for creating and
// classifying errors raised while planning and executing fieldbus scans.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodeInternal      ErrorCode = "INTERNAL"

	// Job lifecycle errors.
	CodeBusy             ErrorCode = "BUSY"
	CodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"

	// Probe errors.
	CodeConnection    ErrorCode = "CONNECTION"
	CodeProtocol      ErrorCode = "PROTOCOL"
	CodeTargetInvalid ErrorCode = "TARGET_INVALID"
)

// ValidationKind identifies which scan request rule was violated.
type ValidationKind string

const (
	KindMissingTarget       ValidationKind = "missing_target"
	KindInvalidTarget       ValidationKind = "invalid_target"
	KindNoScanSelected      ValidationKind = "no_scan_selected"
	KindInvalidStationRange ValidationKind = "invalid_station_range"
	KindInvalidAddressRange ValidationKind = "invalid_address_range"
	KindInvalidStationID    ValidationKind = "invalid_station_id"
	KindMalformedRequest    ValidationKind = "malformed_request"
)

// ErrBusy is returned when a scan is submitted while another one is running.
var ErrBusy = &ScanError{Code: CodeBusy, Message: "A scan is already in progress"}

// ErrShuttingDown is returned when a scan is submitted after shutdown began.
var ErrShuttingDown = &ScanError{Code: CodeCanceled, Message: "Scan service is shutting down"}

// ValidationError reports a malformed scan request. It is raised before any
// network activity and never enters the job state machine.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s", CodeValidation, e.Message)
}

// NewValidationError creates a validation error of the given kind.
func NewValidationError(kind ValidationKind, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// ScanError represents an error that occurred during scanning operations.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
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

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return CodeValidation
	}
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Code
	}
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsValidation reports whether err is a scan request validation error.
func IsValidation(err error) bool {
	return IsCode(err, CodeValidation)
}

// IsBusy reports whether err signals that another scan is running.
func IsBusy(err error) bool {
	return IsCode(err, CodeBusy)
}

// ValidationKindOf returns the violated rule, or "" if err is not a validation error.
func ValidationKindOf(err error) ValidationKind {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Kind
	}
	return ""
}

// ErrExecutionFailure creates the setup-time error that moves a job to Failed.
func ErrExecutionFailure(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeExecutionFailure, "Cannot connect to target", target, err)
}

// Cause returns the error wrapped by the first ScanError in err's chain,
// or err itself when there is none. Use it for messages shown to users.
func Cause(err error) error {
	var scanErr *ScanError
	if errors.As(err, &scanErr) && scanErr.Cause != nil {
		return scanErr.Cause
	}
	return err
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Invalid configuration value", field, value)
}
