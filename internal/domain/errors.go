package domain

import (
	"fmt"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeDatabaseError   = "DATABASE_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeScaleNotActive  = "SCALE_NOT_ACTIVE"
	ErrCodeLifecycle       = "LIFECYCLE_ERROR"
	ErrCodeRateLimit       = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer  = "INTERNAL_SERVER_ERROR"
	ErrCodeEmptyResponses  = "EMPTY_RESPONSES"
	ErrCodeDefinitionParse = "DEFINITION_PARSE_ERROR"
)

// ValidationError represents an input validation error at the ingestion boundary
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ScaleError attaches a scale id to an underlying error.
type ScaleError struct {
	ScaleID string
	Err     error
}

func (e *ScaleError) Error() string {
	return fmt.Sprintf("scale %s: %v", e.ScaleID, e.Err)
}

func (e *ScaleError) Unwrap() error {
	return e.Err
}
