// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Every error that crosses a package boundary of the query engine is an AppError.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeStore    = "STORE_ERROR"

	// Validation errors (400)
	CodeValidation    = "VALIDATION_ERROR"
	CodeTypeMismatch  = "TYPE_MISMATCH"
	CodeUnknownField  = "UNKNOWN_FIELD"
	CodeInvalidFilter = "INVALID_FILTER"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type of the engine.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (entity, field, operation, value)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

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

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewTypeMismatch reports an operand whose type does not match the field's value type.
func NewTypeMismatch(field, op string, want string, got any) *AppError {
	return &AppError{
		Code:       CodeTypeMismatch,
		Message:    fmt.Sprintf("operand of %s.%s must be %s", field, op, want),
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"field":     field,
			"operation": op,
			"expected":  want,
			"actual":    fmt.Sprintf("%T", got),
		},
	}
}

// NewUnknownField reports a criteria key the entity does not declare.
func NewUnknownField(entity, field string) *AppError {
	return &AppError{
		Code:       CodeUnknownField,
		Message:    fmt.Sprintf("%s has no filterable field %q", entity, field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"entity": entity, "field": field},
	}
}

// NewInvalidFilter reports an operation that is not applicable or malformed.
func NewInvalidFilter(field, op, message string) *AppError {
	return &AppError{
		Code:       CodeInvalidFilter,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field, "operation": op},
	}
}

// NewStore wraps a failure of the underlying record store (500).
func NewStore(entity string, err error) *AppError {
	return &AppError{
		Code:       CodeStore,
		Message:    fmt.Sprintf("query on %s failed", entity),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"entity": entity},
		Err:        err,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(kind string, name any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", kind),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"kind": kind, "name": name},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
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

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}
