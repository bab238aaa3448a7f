package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Session and routing errors. NoSession and RoleMismatch are always recovered by a
// redirect; UnknownRoute ends in a forced logout.
var (
	ErrNoSession      = NewError(ErrCodeUnauthorized, "no session")
	ErrRoleMismatch   = NewError(ErrCodeForbidden, "role mismatch")
	ErrRoleUnset      = NewError(ErrCodeUnauthorized, "session has no role")
	ErrUnknownRoute   = NewError(ErrCodeNotFound, "unknown route")
	ErrStorageCorrupt = NewError(ErrCodeConflict, "session record corrupt")
	ErrInvalidLogin   = NewError(ErrCodeInvalid, "login requires token, role and user id")
	ErrLoginRejected  = NewError(ErrCodeUnauthorized, "login rejected")
	ErrRateLimited    = NewError(ErrCodeRateLimited, "too many attempts")
	ErrBackendDown    = NewError(ErrCodeUnavailable, "backend unavailable")
	ErrInvalidPayload = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// MessageOf returns the human-readable message carried by a domain error.
func MessageOf(err error) string {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
