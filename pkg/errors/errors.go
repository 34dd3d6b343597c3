// Package errors defines the coded error shape every layer of the solve
// API surfaces: a machine-readable code, an HTTP status, and an internal
// cause kept out of responses.
package errors

import (
	"fmt"
	"net/http"
)

// AppError is the one error type the HTTP layer knows how to render.
type AppError struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Status      int                    `json:"-"`
	InternalErr error                  `json:"-"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.InternalErr != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.InternalErr)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.InternalErr
}

// WithDetails attaches structured detail (e.g. the remaining validation
// issues beyond the first) for the response body.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithInternal records the underlying cause without exposing it to the
// client.
func (e *AppError) WithInternal(err error) *AppError {
	e.InternalErr = err
	return e
}

// coded builds an AppError, substituting fallback when message is empty.
func coded(code string, status int, message, fallback string) *AppError {
	if message == "" {
		message = fallback
	}
	return &AppError{Code: code, Message: message, Status: status}
}

func NewNotFoundError(resource string) *AppError {
	return coded("NOT_FOUND", http.StatusNotFound, fmt.Sprintf("%s not found", resource), "")
}

func NewUnauthorizedError(message string) *AppError {
	return coded("UNAUTHORIZED", http.StatusUnauthorized, message, "Unauthorized access")
}

func NewForbiddenError(message string) *AppError {
	return coded("FORBIDDEN", http.StatusForbidden, message, "Access forbidden")
}

func NewValidationError(message string) *AppError {
	return coded("VALIDATION_ERROR", http.StatusBadRequest, message, "Validation failed")
}

func NewBadRequestError(message string) *AppError {
	return coded("BAD_REQUEST", http.StatusBadRequest, message, "Bad request")
}

func NewConflictError(message string) *AppError {
	return coded("CONFLICT", http.StatusConflict, message, "Resource conflict")
}

func NewInternalError(message string) *AppError {
	return coded("INTERNAL_ERROR", http.StatusInternalServerError, message, "Internal server error")
}

func NewTooManyRequestsError(message string) *AppError {
	return coded("TOO_MANY_REQUESTS", http.StatusTooManyRequests, message, "Too many requests")
}

// GetAppError extracts the AppError from err, wrapping anything else as
// an internal error so unknown failures never leak their text.
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return &AppError{
		Code:        "INTERNAL_ERROR",
		Message:     "Internal server error",
		Status:      http.StatusInternalServerError,
		InternalErr: err,
	}
}

// WrapWithCode wraps err under a custom code, message, and status, used
// by internal/solver/solverrors for solver-specific codes.
func WrapWithCode(err error, code string, message string, status int) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:        code,
		Message:     message,
		Status:      status,
		InternalErr: err,
	}
}
