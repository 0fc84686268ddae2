package model

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed or missing configuration document or field.
// It is fatal and always raised before anything executes.
type ConfigError struct {
	// Source is the file or registry the problem was found in, if known.
	Source string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError for source with a formatted message.
func NewConfigError(source, format string, args ...any) *ConfigError {
	return &ConfigError{Source: source, Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports a value that fails a declared schema or bound.
type ValidationError struct {
	// Name is the parameter or bound the value was checked against.
	Name string

	// Message names the violated constraint.
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for name with a formatted
// message. The message is prefixed with the name.
func NewValidationError(name, format string, args ...any) *ValidationError {
	return &ValidationError{
		Name:    name,
		Message: name + ": " + fmt.Sprintf(format, args...),
	}
}

// SafetyViolationError reports a value outside a safety bound.
//
// It is a ValidationError: errors.As(err, new(*ValidationError)) succeeds.
// Violations are always fatal; a policy's behavior section never downgrades
// them.
type SafetyViolationError struct {
	ValidationError

	// Value is the offending value after numeric coercion.
	Value float64

	// Limit is the bound that was crossed.
	Limit float64

	// Side is "minimum" or "maximum".
	Side string
}

func (e *SafetyViolationError) Error() string {
	return e.ValidationError.Error()
}

func (e *SafetyViolationError) Unwrap() error {
	return &e.ValidationError
}

// ExecutionError reports an adapter process that could not be started or
// exited nonzero. It fails one invocation only.
type ExecutionError struct {
	// Adapter is the manifest name.
	Adapter string

	// ExitCode is the process exit status, or -1 if it never ran.
	ExitCode int

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExitCodeError creates the ExecutionError for a nonzero exit.
func NewExitCodeError(adapter string, code int) *ExecutionError {
	return &ExecutionError{
		Adapter:  adapter,
		ExitCode: code,
		Message:  fmt.Sprintf("adapter %q failed with exit code %d", adapter, code),
	}
}

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsValidationError returns true if err is or wraps a ValidationError,
// including safety violations.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsSafetyViolation returns true if err is or wraps a SafetyViolationError.
func IsSafetyViolation(err error) bool {
	var se *SafetyViolationError
	return errors.As(err, &se)
}

// IsExecutionError returns true if err is or wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
