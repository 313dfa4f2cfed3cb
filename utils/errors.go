package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError carries a programmatic code and an HTTP status alongside the
// message, so controllers can translate without string matching.
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"`
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e ServiceError) Unwrap() error {
	return e.Cause
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

// Error taxonomy. Validation, not-found, invalid-state and forbidden errors
// abort the triggering operation; channel-delivery errors are logged at the
// fan-out boundary and never propagate.

func NewValidationError(message string) error {
	return ServiceError{
		Code:       ErrCodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationErrorWithDetails(message, details string) error {
	return ServiceError{
		Code:       ErrCodeValidation,
		Message:    message,
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewInvalidStateError(message string) error {
	return ServiceError{
		Code:       ErrCodeInvalidState,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewForbiddenError(message string) error {
	return ServiceError{
		Code:       ErrCodeForbidden,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewUnauthorizedError(message string) error {
	return ServiceError{
		Code:       ErrCodeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewChannelDeliveryError wraps a single notification channel failure. It is
// always non-fatal to the triggering operation.
func NewChannelDeliveryError(channel string, cause error) error {
	return ServiceError{
		Code:       ErrCodeChannelDelivery,
		Message:    fmt.Sprintf("%s delivery failed", channel),
		Cause:      cause,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func NewInternalError(message string) error {
	return ServiceError{
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func NewDatabaseError(operation string, cause error) error {
	return ServiceError{
		Code:       ErrCodeDatabase,
		Message:    fmt.Sprintf("database operation failed: %s", operation),
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

// Kind checks used by callers that branch programmatically.

func IsValidationError(err error) bool   { return hasCode(err, ErrCodeValidation) }
func IsNotFoundError(err error) bool     { return hasCode(err, ErrCodeNotFound) }
func IsInvalidStateError(err error) bool { return hasCode(err, ErrCodeInvalidState) }
func IsForbiddenError(err error) bool    { return hasCode(err, ErrCodeForbidden) }

func hasCode(err error, code string) bool {
	serviceErr, ok := GetServiceError(err)
	return ok && serviceErr.Code == code
}

// Error code constants
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidState    = "INVALID_STATE"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeChannelDelivery = "CHANNEL_DELIVERY_ERROR"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeDatabase        = "DATABASE_ERROR"
)
