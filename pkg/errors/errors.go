package errors

import (
	"errors"
	"fmt"
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

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrConfiguration
	ErrIdentityResolution
	ErrLedgerWrite
	ErrRouting
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

func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// NewConfiguration reports a missing or invalid piece of configuration,
// such as an absent queue credential in a deployed topology.
func NewConfiguration(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConfiguration,
		Message: message,
		Err:     err,
	}
}

// NewIdentityResolution reports recipients whose phone could not be
// resolved to a durable contact identity. The whole batch is rejected.
func NewIdentityResolution(message string, err error) *AppError {
	return &AppError{
		Code:    ErrIdentityResolution,
		Message: message,
		Err:     err,
	}
}

func NewLedgerWrite(err error) *AppError {
	return &AppError{
		Code:    ErrLedgerWrite,
		Message: "failed to persist dispatch ledger",
		Err:     err,
	}
}

func NewRouting(message string, err error) *AppError {
	return &AppError{
		Code:    ErrRouting,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from err, or ErrInternal when err is not
// an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
