package errors

import (
	stderrors "errors"
	"net/http"
)

// FieldError points a failure at a single request field.
type FieldError struct {
	Name   string
	Detail string
}

// Error is the domain error type with structured metadata.
type Error struct {
	Code    Code         // Machine-readable error code
	Message string       // User-facing message, also sent in the X-Error header
	Detail  string       // Supplementary detail (internal context for 5xx)
	Fields  []FieldError // Per-field failures for validation and conflicts
	Cause   error        // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithFields creates a domain error carrying per-field failures.
func WithFields(code Code, message string, fields ...FieldError) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Fields:  fields,
	}
}

// Unexpected creates the catch-all internal error with an operator-facing detail.
func Unexpected(detail string) *Error {
	return &Error{
		Code:    CodeInternal,
		Message: "An unexpected error occurred, talk to the tech team",
		Detail:  detail,
	}
}

// Unauthenticated creates the credential-rejection error.
func Unauthenticated() *Error {
	return New(CodeUnauthenticated, "You are not authenticated")
}

// InvalidToken creates the token-rejection error.
func InvalidToken() *Error {
	return New(CodeInvalidToken, "Token is invalid or expired")
}

// PermissionDenied creates the domain-level authorization denial.
func PermissionDenied() *Error {
	return New(CodePermissionDenied, "You do not have permission to use this route")
}

// NotFound creates a missing-resource error, e.g. "Role not found".
func NotFound(code Code, resource string) *Error {
	return New(code, resource+" not found")
}

// AlreadyExists creates a duplicate-resource error, e.g. "User already exists".
func AlreadyExists(code Code, resource string, fields ...FieldError) *Error {
	return WithFields(code, resource+" already exists", fields...)
}

// Validation creates a request-validation error with per-field details.
func Validation(message string, fields ...FieldError) *Error {
	return WithFields(CodeValidation, message, fields...)
}

// CodeOf extracts the code from an error chain, or CodeUnknown.
func CodeOf(err error) Code {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	return appErr.Code.HTTPStatus()
}
