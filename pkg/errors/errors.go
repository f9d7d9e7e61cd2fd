package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of pipeline errors
type ErrorCode string

const (
	// Recoverable-by-retry outcomes
	ErrCodeRenderTimeout ErrorCode = "RENDER_TIMEOUT"
	ErrCodeRenderError   ErrorCode = "RENDER_ERROR"
	ErrCodeNoBlocksFound ErrorCode = "NO_BLOCKS_FOUND"
	ErrCodeNoRowsParsed  ErrorCode = "NO_ROWS_PARSED"

	// Fatal to the current workflow invocation
	ErrCodeStoreIO ErrorCode = "STORE_IO_ERROR"
)

// AppError represents a pipeline error with a classification code
type AppError struct {
	Code      ErrorCode
	Message   string
	Cause     error
	Retryable bool
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new pipeline error
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a new pipeline error around a cause
func Wrap(code ErrorCode, message string, cause error) *AppError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// CodeOf extracts the classification code from an error chain.
func CodeOf(err error) (ErrorCode, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}

// IsRetryable reports whether the error is a recoverable-by-retry outcome.
// Unclassified errors are treated as not retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

func isRetryableCode(code ErrorCode) bool {
	switch code {
	case ErrCodeRenderTimeout, ErrCodeRenderError, ErrCodeNoBlocksFound, ErrCodeNoRowsParsed:
		return true
	}
	return false
}
