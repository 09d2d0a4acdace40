// Package errors provides the standardized broker error type shared by the
// wire protocol and the admin HTTP API.
package errors

import (
	"fmt"
	"net/http"
)

// Category groups error codes for logging and metrics.
type Category string

// Error categories.
const (
	CategoryAuth     Category = "AUTH"
	CategoryQuota    Category = "QUOTA"
	CategoryInput    Category = "INPUT"
	CategoryResource Category = "RESOURCE"
	CategoryBackend  Category = "BACKEND"
	CategoryInternal Category = "INTERNAL"
)

// BrokerError represents a standardized broker error. Code is the
// machine-readable identifier sent to clients on both the wire protocol
// and the admin API; HTTPStatus only applies to the latter.
type BrokerError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Category   Category `json:"-"`
	HTTPStatus int      `json:"-"`
	Details    any      `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *BrokerError) Error() string {
	return e.Message
}

// WithDetails returns a copy of the error with additional details.
func (e *BrokerError) WithDetails(details any) *BrokerError {
	return &BrokerError{
		Code:       e.Code,
		Message:    e.Message,
		Category:   e.Category,
		HTTPStatus: e.HTTPStatus,
		Details:    details,
	}
}

// WithMessage returns a copy of the error with a custom message.
func (e *BrokerError) WithMessage(message string) *BrokerError {
	return &BrokerError{
		Code:       e.Code,
		Message:    message,
		Category:   e.Category,
		HTTPStatus: e.HTTPStatus,
		Details:    e.Details,
	}
}

// Standard error definitions
var (
	// ErrUnauthorized is returned when authentication is required but missing or invalid.
	ErrUnauthorized = &BrokerError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		Category:   CategoryAuth,
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrTokenExpired is returned when a token was valid but is past its expiry.
	ErrTokenExpired = &BrokerError{
		Code:       "TOKEN_EXPIRED",
		Message:    "Token has expired",
		Category:   CategoryAuth,
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrTokenInvalid is returned for malformed, tampered, or wrongly signed tokens.
	ErrTokenInvalid = &BrokerError{
		Code:       "TOKEN_INVALID",
		Message:    "Token is invalid",
		Category:   CategoryAuth,
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrForbidden is returned when the principal lacks permission for an action.
	ErrForbidden = &BrokerError{
		Code:       "FORBIDDEN",
		Message:    "You don't have permission to perform this action",
		Category:   CategoryAuth,
		HTTPStatus: http.StatusForbidden,
	}

	// ErrRateLimited is returned when a principal exceeds its request budget.
	ErrRateLimited = &BrokerError{
		Code:       "RATE_LIMITED",
		Message:    "Too many requests. Please try again later.",
		Category:   CategoryQuota,
		HTTPStatus: http.StatusTooManyRequests,
	}

	// ErrValidation is returned when request input fails validation.
	ErrValidation = &BrokerError{
		Code:       "VALIDATION_ERROR",
		Message:    "Request validation failed",
		Category:   CategoryInput,
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrUnsupportedMessageType is returned for unknown wire message types.
	ErrUnsupportedMessageType = &BrokerError{
		Code:       "UNSUPPORTED_MESSAGE_TYPE",
		Message:    "Unsupported message type",
		Category:   CategoryInput,
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrFraming is returned when a frame cannot be read or decoded.
	ErrFraming = &BrokerError{
		Code:       "FRAMING_ERROR",
		Message:    "Malformed message frame",
		Category:   CategoryInput,
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrDuplicateJobID is returned when a job id was already submitted.
	ErrDuplicateJobID = &BrokerError{
		Code:       "DUPLICATE_JOB_ID",
		Message:    "A job with this id already exists",
		Category:   CategoryResource,
		HTTPStatus: http.StatusConflict,
	}

	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = &BrokerError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		Category:   CategoryResource,
		HTTPStatus: http.StatusNotFound,
	}

	// ErrConflict is returned when a resource already exists.
	ErrConflict = &BrokerError{
		Code:       "CONFLICT",
		Message:    "Resource already exists",
		Category:   CategoryResource,
		HTTPStatus: http.StatusConflict,
	}

	// ErrPrintJob is returned when the printer backend rejects or fails a job.
	ErrPrintJob = &BrokerError{
		Code:       "PRINT_JOB_ERROR",
		Message:    "Print job processing failed",
		Category:   CategoryBackend,
		HTTPStatus: http.StatusBadGateway,
	}

	// ErrServer is returned for unexpected internal errors.
	ErrServer = &BrokerError{
		Code:       "SERVER_ERROR",
		Message:    "An internal error occurred",
		Category:   CategoryInternal,
		HTTPStatus: http.StatusInternalServerError,
	}
)

// NewValidationError creates a validation error naming the offending field.
// The message must describe the rule, never echo the rejected input.
func NewValidationError(field, message string) *BrokerError {
	return &BrokerError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("Validation failed: %s", message),
		Category:   CategoryInput,
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]string{
			"field": field,
			"error": message,
		},
	}
}

// NewValidationErrors creates a validation error with multiple field errors.
func NewValidationErrors(errors map[string]string) *BrokerError {
	return &BrokerError{
		Code:       "VALIDATION_ERROR",
		Message:    "One or more fields failed validation",
		Category:   CategoryInput,
		HTTPStatus: http.StatusBadRequest,
		Details:    errors,
	}
}

// NewNotFoundError creates a not found error for a specific resource type.
func NewNotFoundError(resource string) *BrokerError {
	return &BrokerError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Category:   CategoryResource,
		HTTPStatus: http.StatusNotFound,
	}
}

// NewConflictError creates a conflict error with a custom message.
func NewConflictError(message string) *BrokerError {
	return &BrokerError{
		Code:       "CONFLICT",
		Message:    message,
		Category:   CategoryResource,
		HTTPStatus: http.StatusConflict,
	}
}

// NewPrintJobError creates a backend error with a custom message.
func NewPrintJobError(message string) *BrokerError {
	return &BrokerError{
		Code:       "PRINT_JOB_ERROR",
		Message:    message,
		Category:   CategoryBackend,
		HTTPStatus: http.StatusBadGateway,
	}
}

// IsBrokerError checks if an error is a BrokerError.
func IsBrokerError(err error) bool {
	_, ok := err.(*BrokerError)
	return ok
}

// AsBrokerError converts an error to a BrokerError if possible.
// Returns ErrServer if the error is not a BrokerError.
func AsBrokerError(err error) *BrokerError {
	if brokerErr, ok := err.(*BrokerError); ok {
		return brokerErr
	}
	return ErrServer
}
