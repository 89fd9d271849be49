package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a coded application error. The code travels to clients over
// both the HTTP surface and the socket error event, so clients can render
// "too late" differently from "missing".
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Denied(msg string) error {
	return New(CodePermissionDenied, msg)
}

func WindowExpired(msg string) error {
	return New(CodeWindowExpired, msg)
}

func Unavailable(msg string) error {
	return New(CodeUnavailable, msg)
}

func Conflict(msg string) error {
	return New(CodeConflict, msg)
}

// Internal wraps a storage or infrastructure failure. The cause stays
// server-side; clients only ever see the message and code.
func Internal(msg string, cause error) error {
	return &AppError{Code: CodeInternal, Message: msg, Cause: cause}
}

// CodeOf extracts the code from any error in the chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// HTTPStatus maps an error code to an HTTP status for the REST surface.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument, CodeWindowExpired:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
