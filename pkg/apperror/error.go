// Package apperror provides structured error handling for the allocator
// subsystem. All domain errors must use AppError so callers can branch on
// machine-readable codes instead of string matching.
package apperror

import (
	"errors"
	"fmt"
)

// Error codes grouped by origin
const (
	// Configuration errors — fatal to the registration attempt, never retried
	CodeConfig = "CONFIG_ERROR"

	// Provisioning races — recovered internally, never surfaced to callers
	CodeDuplicateScope = "DUPLICATE_SCOPE"

	// Lookup misses
	CodeNotFound = "NOT_FOUND"

	// Backend connectivity or operational failures
	CodeUnavailable = "STORE_UNAVAILABLE"

	// Allocation attempted against an allocator that never finished provisioning
	CodeNotInitialized = "NOT_INITIALIZED"

	// Everything else
	CodeInternal = "INTERNAL_ERROR"
)

// AppError is the standard error type for the library.
// It implements the error interface and carries structured details.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (option names, scope keys, etc.)
	Details map[string]any `json:"details,omitempty"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewConfig creates a configuration error naming the offending option.
func NewConfig(option, message string) *AppError {
	return &AppError{
		Code:    CodeConfig,
		Message: message,
		Details: map[string]any{"option": option},
	}
}

// NewDuplicateScope reports a counter scope that already exists. Provisioning
// treats this as a benign race and it must never reach a caller.
func NewDuplicateScope(field, model string) *AppError {
	return &AppError{
		Code:    CodeDuplicateScope,
		Message: fmt.Sprintf("counter scope (%s, %s) already exists", field, model),
		Details: map[string]any{"field": field, "model": model},
	}
}

// NewNotFound creates a not found error
func NewNotFound(entity string, key any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: map[string]any{"entity": entity, "key": key},
	}
}

// NewUnavailable wraps a backend connectivity or operational failure.
func NewUnavailable(err error) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: "counter store unavailable",
		Err:     err,
	}
}

// NewNotInitialized reports an allocation attempt against an allocator whose
// provisioning never resolved and is no longer pending.
func NewNotInitialized(field, model string) *AppError {
	return &AppError{
		Code:    CodeNotInitialized,
		Message: fmt.Sprintf("allocator for scope (%s, %s) is not initialized", field, model),
		Details: map[string]any{"field": field, "model": model},
	}
}

// NewInternal creates an internal error (hides details from the caller)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "internal error",
		Err:     err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the error code, or CodeInternal for foreign errors.
func CodeOf(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// IsConfig checks if error is CodeConfig
func IsConfig(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeConfig
	}
	return false
}

// IsDuplicateScope checks if error is CodeDuplicateScope
func IsDuplicateScope(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeDuplicateScope
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsUnavailable checks if error is CodeUnavailable
func IsUnavailable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeUnavailable
	}
	return false
}

// IsNotInitialized checks if error is CodeNotInitialized
func IsNotInitialized(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotInitialized
	}
	return false
}
