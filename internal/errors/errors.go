package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	// Authentication errors
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"

	// Authorization errors
	ErrCodeForbidden = "FORBIDDEN"

	// Validation errors
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"

	// Resource errors
	ErrCodeNotFound = "NOT_FOUND"

	// Throttling
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"

	// Service errors
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// APIError represents a standardized API error response
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError
func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// NewAPIErrorWithDetails creates a new APIError with details
func NewAPIErrorWithDetails(code, message string, details interface{}) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// RespondWithError sends an error response and stops the handler chain.
func RespondWithError(c *gin.Context, statusCode int, err *APIError) {
	c.AbortWithStatusJSON(statusCode, err)
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, NewAPIError(ErrCodeUnauthorized, message))
}

// InvalidCredentials sends a 401 response for a failed login
func InvalidCredentials(c *gin.Context) {
	RespondWithError(c, http.StatusUnauthorized, NewAPIError(ErrCodeInvalidCredentials, "Invalid email and/or password"))
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "Access denied"
	}
	RespondWithError(c, http.StatusForbidden, NewAPIError(ErrCodeForbidden, message))
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, NewAPIError(ErrCodeNotFound, message))
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request"
	}
	RespondWithError(c, http.StatusBadRequest, NewAPIError(ErrCodeInvalidInput, message))
}

// UnprocessableEntity sends a 422 response carrying field errors
func UnprocessableEntity(c *gin.Context, details interface{}) {
	RespondWithError(c, http.StatusUnprocessableEntity, NewAPIErrorWithDetails(ErrCodeValidationFailed, "Validation failed", details))
}

// PayloadTooLarge sends a 413 response
func PayloadTooLarge(c *gin.Context) {
	RespondWithError(c, http.StatusRequestEntityTooLarge, NewAPIError(ErrCodePayloadTooLarge, "Request body size exceeds limit"))
}

// TooManyRequests sends a 429 response
func TooManyRequests(c *gin.Context) {
	RespondWithError(c, http.StatusTooManyRequests, NewAPIError(ErrCodeTooManyRequests, "Too many requests"))
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	RespondWithError(c, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, message))
}
