// Package errors provides structured application errors with HTTP mapping.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// User errors
	CodeUserNotFound      Code = "USER_NOT_FOUND"
	CodeUserAlreadyExists Code = "USER_ALREADY_EXISTS"
	CodeUserInvalidInput  Code = "USER_INVALID_INPUT"

	// Authentication errors
	CodeUnauthenticated  Code = "AUTH_UNAUTHENTICATED"
	CodeInvalidToken     Code = "AUTH_INVALID_TOKEN"
	CodePermissionDenied Code = "AUTH_PERMISSION_DENIED"

	// Authorization errors
	CodeRoleNotFound       Code = "ROLE_NOT_FOUND"
	CodeRoleAlreadyExists  Code = "ROLE_ALREADY_EXISTS"
	CodeGroupNotFound      Code = "GROUP_NOT_FOUND"
	CodeGroupAlreadyExists Code = "GROUP_ALREADY_EXISTS"

	// Request validation errors
	CodeValidation    Code = "VALIDATION_FAILED"
	CodeMalformedBody Code = "MALFORMED_BODY"

	// Internal errors
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated, CodeInvalidToken:
		return http.StatusUnauthorized

	case CodePermissionDenied:
		return http.StatusForbidden

	case CodeUserNotFound,
		CodeRoleNotFound,
		CodeGroupNotFound:
		return http.StatusNotFound

	case CodeUserAlreadyExists,
		CodeRoleAlreadyExists,
		CodeGroupAlreadyExists:
		return http.StatusConflict

	case CodeUserInvalidInput,
		CodeValidation,
		CodeMalformedBody:
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}
