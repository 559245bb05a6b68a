package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// StatusCode maps the error code onto the HTTP status returned by the kiosk API.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrIncomplete:
		return http.StatusBadRequest
	case ErrInvalidCode:
		return http.StatusUnprocessableEntity
	case ErrFlow, ErrSessionReset:
		return http.StatusConflict
	case ErrRequestAborted:
		return http.StatusGatewayTimeout
	case ErrServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrInternal
)

// Kiosk error codes
const (
	ErrInvalidCode ErrorCode = iota + 2000
	ErrIncomplete
	ErrServer
	ErrRequestAborted
	ErrRoomInfoUnavailable
	ErrNotification
	ErrFlow
	ErrSessionReset
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

// InvalidCode reports a well-formed code that matches no appointment.
func InvalidCode(code string) *AppError {
	return &AppError{
		Code:    ErrInvalidCode,
		Message: fmt.Sprintf("invalid appointment code %q", code),
	}
}

// Incomplete reports a code that does not have the required number of digits.
func Incomplete(length int) *AppError {
	return &AppError{
		Code:    ErrIncomplete,
		Message: fmt.Sprintf("code must contain exactly %d digits", length),
	}
}

func Server(err error) *AppError {
	return &AppError{
		Code:    ErrServer,
		Message: "backend request failed",
		Err:     err,
	}
}

// Aborted reports a request cut off by the client-side timeout.
func Aborted(err error) *AppError {
	return &AppError{
		Code:    ErrRequestAborted,
		Message: "request aborted: backend did not answer in time",
		Err:     err,
	}
}

func RoomInfoUnavailable(err error) *AppError {
	return &AppError{
		Code:    ErrRoomInfoUnavailable,
		Message: "room information unavailable",
		Err:     err,
	}
}

func NotificationFailed(err error) *AppError {
	return &AppError{
		Code:    ErrNotification,
		Message: "best-effort notification failed",
		Err:     err,
	}
}

func Flow(message string) *AppError {
	return &AppError{
		Code:    ErrFlow,
		Message: message,
	}
}

// SessionReset is returned to callers whose session was reset while they were in flight.
func SessionReset() *AppError {
	return &AppError{
		Code:    ErrSessionReset,
		Message: "session was reset",
	}
}

// CodeOf returns the code of the first AppError in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return 0
}

func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsServerError is true for ErrServer and its ErrRequestAborted subtype.
func IsServerError(err error) bool {
	code := CodeOf(err)
	return code == ErrServer || code == ErrRequestAborted
}

func IsAborted(err error) bool {
	return Is(err, ErrRequestAborted)
}
