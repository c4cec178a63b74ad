// Package apierr defines the error type shared by all BirdTag Lambda
// handlers. Every failure surfaces as a stable machine-readable code, a
// client-safe message, and an HTTP status; the wrapped cause is kept for
// server-side logging and never sent to the client.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error code.
type Code string

const (
	CodeUnknown          Code = "UNKNOWN_ERROR"
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConfiguration    Code = "CONFIGURATION_ERROR"
	CodeInvalidFileType  Code = "INVALID_FILE_TYPE"
	CodeFileTooLarge     Code = "FILE_TOO_LARGE"
	CodeProcessingFailed Code = "PROCESSING_FAILED"
	CodeModelLoadFailed  Code = "MODEL_LOAD_FAILED"
	CodeInferenceFailed  Code = "INFERENCE_FAILED"
	CodeAuthError        Code = "AUTH_ERROR"
	CodeDBError          Code = "DB_ERROR"
	CodeS3Error          Code = "S3_ERROR"
)

// Error carries a code, a client-safe message, and an HTTP status.
type Error struct {
	Code    Code
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error without a wrapped cause.
func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap creates an Error wrapping an underlying cause.
func Wrap(code Code, status int, message string, err error) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// NotFound creates a 404 Error.
func NotFound(message string) *Error {
	return New(CodeNotFound, http.StatusNotFound, message)
}

// Invalid creates a 400 Error for bad input.
func Invalid(message string) *Error {
	return New(CodeInvalidInput, http.StatusBadRequest, message)
}

// Internal creates a 500 Error wrapping an underlying cause.
func Internal(code Code, message string, err error) *Error {
	return Wrap(code, http.StatusInternalServerError, message, err)
}

// From converts any error to an *Error. Existing *Error values (anywhere
// in the wrap chain) pass through unchanged; everything else becomes a
// 500 with CodeUnknown.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{
		Code:    CodeUnknown,
		Message: "internal error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// RequireFields returns an INVALID_INPUT error naming the first field in
// names that is empty in fields, or nil when all are present.
func RequireFields(fields map[string]string, names ...string) error {
	for _, name := range names {
		if fields[name] == "" {
			return Invalid(name + " is required")
		}
	}
	return nil
}
