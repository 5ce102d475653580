package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// Authentication errors - fatal, abort the whole run
	ErrorTypeInvalidCredentials ErrorType = "auth_credentials"
	ErrorTypeAuthTimeout        ErrorType = "auth_timeout"
	ErrorTypePageStructure      ErrorType = "auth_page_structure"

	// Navigation errors - a course root that cannot be reached
	ErrorTypeNavigation ErrorType = "navigation"

	// Structure warnings - unrecognized content nodes, traversal continues
	ErrorTypeStructure ErrorType = "structure"

	// Download errors - logged per task, the course continues
	ErrorTypeDownloadTimeout   ErrorType = "download_timeout"
	ErrorTypeDownloadAmbiguous ErrorType = "download_ambiguous"
	ErrorTypeFilesystem        ErrorType = "filesystem"

	ErrorTypeUnknown ErrorType = "unknown"
)

// Error represents a portal or download error with type information
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without a cause
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Newf creates a typed error with a formatted message
func Newf(errorType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errorType, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error wrapping an underlying cause
func Wrap(errorType ErrorType, message string, err error) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// TypeOf returns the type of a typed error, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given error type
func IsType(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}

// IsFatal reports whether an error should abort the whole run.
// Only authentication failures bubble to the top; everything below
// the course level is recorded and processing continues.
func IsFatal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeInvalidCredentials, ErrorTypeAuthTimeout, ErrorTypePageStructure:
		return true
	default:
		return false
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation, ErrorTypeDownloadTimeout:
		return true
	case ErrorTypeInvalidCredentials, ErrorTypePageStructure,
		ErrorTypeDownloadAmbiguous, ErrorTypeFilesystem, ErrorTypeStructure:
		return false
	default:
		return false
	}
}
