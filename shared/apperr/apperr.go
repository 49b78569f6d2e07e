package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error code surfaced at the service boundary.
type Code string

const (
	CodeUnscopedSession     Code = "UNSCOPED_SESSION"
	CodeNotAMember          Code = "NOT_A_MEMBER"
	CodeForbidden           Code = "FORBIDDEN"
	CodeResourceOutOfTenant Code = "RESOURCE_OUT_OF_TENANT"
	CodeSelfDependency      Code = "SELF_DEPENDENCY"
	CodeCircularDependency  Code = "CIRCULAR_DEPENDENCY"
	CodeInvalidReference    Code = "INVALID_REFERENCE"
	CodeConflict            Code = "CONFLICT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeInternal            Code = "INTERNAL"
)

// Error carries a stable code plus a human-readable message. Detail, when set,
// names the offending entity (e.g. the task id that closes a cycle).
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches two errors by code so callers can use errors.Is with sentinel values.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of the error carrying the given detail.
func (e *Error) WithDetail(detail string) *Error {
	return &Error{Code: e.Code, Message: e.Message, Detail: detail}
}

// CodeOf extracts the stable code from any error, defaulting to INTERNAL.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code to the HTTP status used by the handlers. Isolation
// violations are presented as 404 to avoid leaking resource existence; the
// distinct code is still recorded for auditing before the response is written.
func HTTPStatus(code Code) int {
	switch code {
	case CodeUnscopedSession:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotAMember:
		return http.StatusForbidden
	case CodeResourceOutOfTenant, CodeNotFound:
		return http.StatusNotFound
	case CodeSelfDependency, CodeCircularDependency, CodeInvalidReference, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
