package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code int, op string, err error, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidInput(op string, err error, message string) *AppError {
	return New(http.StatusBadRequest, op, err, message)
}

func NotFound(op string, err error, message string) *AppError {
	return New(http.StatusNotFound, op, err, message)
}

func Internal(op string, err error, message string) *AppError {
	return New(http.StatusInternalServerError, op, err, message)
}

// Unavailable signals a temporary overload such as a full job queue.
func Unavailable(op string, err error, message string) *AppError {
	return New(http.StatusServiceUnavailable, op, err, message)
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == http.StatusNotFound
}
