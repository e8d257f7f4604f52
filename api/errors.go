// Package api
// Author: momentics <momentics@gmail.com>
//
// Wire status codes and the structured error that carries them.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrFail          = fmt.Errorf("operation failed")
	ErrInvalidParam  = fmt.Errorf("invalid parameter")
	ErrUnsupported   = fmt.Errorf("operation not supported")
	ErrNoPermission  = fmt.Errorf("permission denied")
	ErrNotFound      = fmt.Errorf("resource not found")
	ErrBusy          = fmt.Errorf("resource busy")
	ErrAlreadyExists = fmt.Errorf("resource already exists")
)

// ErrorCode is the status written back as the return value of an IPC call.
// The set is small and stable; richer causes stay in logs.
type ErrorCode int32

const (
	CodeOK           ErrorCode = 0
	CodeFail         ErrorCode = -1
	CodeInvalidParam ErrorCode = -2
	CodeUnsupported  ErrorCode = -3
	CodeNoPermission ErrorCode = -4
	CodeNotFound     ErrorCode = -5
	CodeBusy         ErrorCode = -6
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeFail:
		return "fail"
	case CodeInvalidParam:
		return "invalid_param"
	case CodeUnsupported:
		return "unsupported"
	case CodeNoPermission:
		return "no_permission"
	case CodeNotFound:
		return "not_found"
	case CodeBusy:
		return "busy"
	default:
		return fmt.Sprintf("code(%d)", int32(c))
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap attaches a wire code to cause.
func Wrap(code ErrorCode, cause error) *Error {
	return &Error{Code: code, Cause: cause, Context: make(map[string]any)}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf collapses err into the wire taxonomy. Anything without a
// recognised code becomes CodeFail.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	switch {
	case errors.Is(err, ErrInvalidParam):
		return CodeInvalidParam
	case errors.Is(err, ErrUnsupported):
		return CodeUnsupported
	case errors.Is(err, ErrNoPermission):
		return CodeNoPermission
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrBusy):
		return CodeBusy
	default:
		return CodeFail
	}
}

// ErrorFromCode turns a non-zero wire status back into an error.
func ErrorFromCode(code ErrorCode) error {
	if code == CodeOK {
		return nil
	}
	return &Error{Code: code, Message: "remote call returned " + code.String()}
}
