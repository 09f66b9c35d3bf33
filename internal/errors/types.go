// Package errors defines the structured error taxonomy shared by the sandbox
// resolver, the render pipeline, the link scanner and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes. The sandbox and link codes double as BrokenLinkEntry reasons.
const (
	CodeEscape        = "escape"
	CodeMissing       = "missing"
	CodeBadEncoding   = "bad_encoding"
	CodeUnknownRoute  = "unknown_route"
	CodeNotAFile      = "not_a_file"
	CodeNotADirectory = "not_a_directory"
	CodeInvalidURL    = "invalid_url"

	CodeConfigInvalid = "ERR_CONFIG_INVALID"
	CodeReadFailed    = "ERR_READ_FAILED"
	CodeScanFailed    = "ERR_SCAN_FAILED"
	CodeInternal      = "ERR_INTERNAL"
)

// RepoError is a structured error type with context.
type RepoError struct {
	Type    ErrorType
	Code    string
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *RepoError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *RepoError) Unwrap() error {
	return e.Cause
}

// Is matches another RepoError with the same type and code.
func (e *RepoError) Is(target error) bool {
	var t *RepoError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithPath attaches the repository-relative path the error is about.
func (e *RepoError) WithPath(path string) *RepoError {
	e.Path = path

	return e
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *RepoError {
	return &RepoError{Type: ErrorTypeSecurity, Code: code, Message: message}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(code, message string, cause error) *RepoError {
	return &RepoError{Type: ErrorTypeNotFound, Code: code, Message: message, Cause: cause}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *RepoError {
	return &RepoError{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *RepoError {
	return &RepoError{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string) *RepoError {
	return &RepoError{Type: ErrorTypeConfig, Code: CodeConfigInvalid, Message: message}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *RepoError {
	return &RepoError{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// Code returns the code of the first RepoError in err's chain, or "".
func Code(err error) string {
	var re *RepoError
	if errors.As(err, &re) {
		return re.Code
	}

	return ""
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var re *RepoError
	if errors.As(err, &re) {
		return re.Type == ErrorTypeSecurity
	}

	return false
}

// IsNotFound checks if an error reports a missing path.
func IsNotFound(err error) bool {
	var re *RepoError
	if errors.As(err, &re) {
		return re.Type == ErrorTypeNotFound
	}

	return false
}

// HTTPStatus maps an error to the status code the server responds with.
func HTTPStatus(err error) int {
	var re *RepoError
	if !errors.As(err, &re) {
		return http.StatusInternalServerError
	}

	switch re.Type {
	case ErrorTypeSecurity, ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
