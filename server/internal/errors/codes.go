package errors

import (
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorCode represents a specific error type for map operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the requested map or user does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeStoreUnavailable indicates the item or snapshot store failed.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrCodeGenerationFailed indicates map generation failed.
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"
)

// MapError represents a structured error for map operations.
type MapError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *MapError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *MapError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *MapError) WithContext(key string, value any) *MapError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *MapError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *MapError {
	return &MapError{Code: ErrCodeInvalidArgument, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *MapError {
	return &MapError{Code: ErrCodeNotFound, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *MapError {
	return &MapError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *MapError {
	return &MapError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string, cause error) *MapError {
	return &MapError{Code: ErrCodeTimeout, Message: msg, Cause: cause}
}

// StoreUnavailable creates a store error.
func StoreUnavailable(msg string, cause error) *MapError {
	return &MapError{Code: ErrCodeStoreUnavailable, Message: msg, Cause: cause}
}

// GenerationFailed creates a generation error.
func GenerationFailed(msg string, cause error) *MapError {
	return &MapError{Code: ErrCodeGenerationFailed, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *MapError {
	return &MapError{Code: code, Message: msg, Cause: cause}
}

// FromContext classifies cause, returning a CONTEXT_CANCELED or TIMEOUT
// error when it wraps a context error, and a defaultCode error otherwise.
func FromContext(cause error, defaultCode ErrorCode, msg string) *MapError {
	switch {
	case pkgerrors.Is(cause, context.DeadlineExceeded):
		return Timeout(msg, cause)
	case pkgerrors.Is(cause, context.Canceled):
		return ContextCanceled(cause)
	}
	return Wrap(cause, defaultCode, msg)
}

// IsCode checks if an error, or any error it wraps, is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var mapErr *MapError
	if pkgerrors.As(err, &mapErr) {
		return mapErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a MapError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var mapErr *MapError
	if pkgerrors.As(err, &mapErr) {
		return mapErr.Code
	}
	return defaultCode
}
