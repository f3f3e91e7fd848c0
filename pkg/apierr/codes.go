// Package apierr provides the coded business error raised by command
// handlers and the codes the dispatcher reports on the wire.
package apierr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Dispatch errors
	CodeMalformedRequest Code = "MALFORMED_REQUEST"
	CodeMalformedCommand Code = "MALFORMED_COMMAND"
	CodeServiceNotFound  Code = "SERVICE_NOT_FOUND"
	CodeMethodNotFound   Code = "METHOD_NOT_FOUND"
	CodePreCheckFailed   Code = "PRECHECK_FAILED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeUnauthorized     Code = "UNAUTHORIZED"

	// Framework errors
	CodeDataError       Code = "DATA_ERROR"
	CodeConversionError Code = "CONVERSION_ERROR"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeFatal           Code = "FATAL_ERROR"

	// Service errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeAlreadyExists   Code = "ALREADY_EXISTS"
)

// HTTPStatus returns the status used when the code ends a request before the
// pipeline runs. Errors raised inside the pipeline are always reported with
// 500.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeMalformedRequest, CodePreCheckFailed:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
