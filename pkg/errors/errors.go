package errors

import (
	"errors"
	"fmt"
)

// Common serving errors
var (
	// Registry errors
	ErrUnknownModel         = errors.New("unknown model")
	ErrVersionNotFound      = errors.New("version not found")
	ErrInsufficientVersions = errors.New("insufficient versions for rollback")

	// Loading errors
	ErrArtifactMissing   = errors.New("model artifact missing")
	ErrUnsupportedFormat = errors.New("unsupported artifact format")
	ErrModelLoadFailed   = errors.New("failed to load model")

	// Inference errors
	ErrInferenceFailed = errors.New("inference failed")
	ErrInvalidInput    = errors.New("invalid input data")

	// Monitoring errors
	ErrNoReferenceStats = errors.New("no reference statistics")
	ErrInvalidThreshold = errors.New("invalid threshold: must be between 0 and 1")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrConfigurationLoad    = errors.New("failed to load configuration")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeRegistry      ErrorType = "registry"
	ErrorTypeLoading       ErrorType = "loading"
	ErrorTypeInference     ErrorType = "inference"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeMonitoring    ErrorType = "monitoring"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      err,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// NewRegistryError creates a registry error
func NewRegistryError(code, message string) *AppError {
	return NewAppError(ErrorTypeRegistry, code, message)
}

// NewLoadingError creates a model loading error
func NewLoadingError(code, message string) *AppError {
	return NewAppError(ErrorTypeLoading, code, message)
}

// NewInferenceError creates an inference error
func NewInferenceError(code, message string) *AppError {
	return NewAppError(ErrorTypeInference, code, message)
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternalError,
		Message:    message,
		HTTPStatus: 500,
	}
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation:
		return 400
	case ErrorTypeRegistry, ErrorTypeLoading:
		return 404
	case ErrorTypeInference, ErrorTypeInternal:
		return 500
	case ErrorTypeConfiguration, ErrorTypeMonitoring:
		return 503
	default:
		return 500
	}
}

// ErrorResponse represents an error response for APIs
type ErrorResponse struct {
	Error     *AppError `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

// Error codes for different error scenarios
const (
	// Registry error codes
	CodeUnknownModel         = "UNKNOWN_MODEL"
	CodeVersionNotFound      = "VERSION_NOT_FOUND"
	CodeInsufficientVersions = "INSUFFICIENT_VERSIONS"

	// Loading error codes
	CodeArtifactMissing   = "ARTIFACT_MISSING"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeModelLoadFailed   = "MODEL_LOAD_FAILED"

	// Inference error codes
	CodeInferenceFailed = "INFERENCE_FAILED"
	CodeInvalidInput    = "INVALID_INPUT"

	// Monitoring error codes
	CodeNoReferenceStats = "NO_REFERENCE_STATS"
	CodeInvalidThreshold = "INVALID_THRESHOLD"

	// Configuration error codes
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
