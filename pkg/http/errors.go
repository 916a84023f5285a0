package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows how it should be rendered: the HTTP status and a
// stable machine-readable code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(status int, code, format string, a ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, a...), Status: status}
}

// Wrap attaches cause without exposing it in the rendered message.
func (e *AppError) Wrap(cause error) *AppError {
	e.Err = cause
	return e
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return NewAppError(http.StatusBadRequest, "ERR_BAD_REQUEST", format, a...)
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NewAppError(http.StatusNotFound, "ERR_NOT_FOUND", format, a...)
}

// UnavailableErrorf reports a feature switched off in configuration or a dependency that is down.
func UnavailableErrorf(format string, a ...interface{}) *AppError {
	return NewAppError(http.StatusServiceUnavailable, "ERR_UNAVAILABLE", format, a...)
}
