// Package errors provides custom error types for the loyalty API.
// All service-layer errors should use AppError to ensure consistent,
// machine-checkable error responses that never leak internal details.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, optional detail payload,
// and optional internal error.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"-"`
	Internal   error          `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// WithDetails creates a new AppError carrying a structured detail payload,
// e.g. the shortfall of a rejected debit or the usage cap at checkout.
func WithDetails(sentinel *AppError, details map[string]any) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    details,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound  = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateUser = &AppError{Code: "DUPLICATE_USER", Message: "A user with this external ID already exists", StatusCode: http.StatusConflict}
)

// Points ledger errors.
var (
	ErrInvalidAmount       = &AppError{Code: "INVALID_AMOUNT", Message: "Amount must be greater than zero", StatusCode: http.StatusBadRequest}
	ErrInsufficientBalance = &AppError{Code: "INSUFFICIENT_BALANCE", Message: "Insufficient point balance", StatusCode: http.StatusConflict}
	ErrSameUserTransfer    = &AppError{Code: "SAME_USER_TRANSFER", Message: "Cannot transfer points to the same user", StatusCode: http.StatusBadRequest}
	ErrUnknownActivityType = &AppError{Code: "UNKNOWN_ACTIVITY_TYPE", Message: "Unknown activity type", StatusCode: http.StatusBadRequest}
)

// Loyalty status errors.
var (
	ErrInvalidStatus      = &AppError{Code: "INVALID_STATUS", Message: "Unknown loyalty status", StatusCode: http.StatusBadRequest}
	ErrUsageLimitExceeded = &AppError{Code: "USAGE_LIMIT_EXCEEDED", Message: "Requested points exceed the purchase usage limit", StatusCode: http.StatusConflict}
)

// RFM errors.
var (
	ErrSegmentNotFound = &AppError{Code: "SEGMENT_NOT_FOUND", Message: "No RFM segment computed for this user", StatusCode: http.StatusNotFound}
	ErrUnknownSegment  = &AppError{Code: "UNKNOWN_SEGMENT", Message: "Unknown segment name", StatusCode: http.StatusBadRequest}
)
