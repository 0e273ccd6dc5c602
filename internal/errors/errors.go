// Package errors defines the coded error type shared by the stores and the delivery path.
// Codes drive the retry decision: permanent short-circuits, everything else consumes an attempt.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an AppError.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeInternal   ErrorCode = "internal"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeCanceled   ErrorCode = "canceled"

	// ErrCodePermanent marks a configuration failure such as an inactive or missing
	// template. The job goes terminal without consuming a retry.
	ErrCodePermanent ErrorCode = "permanent"
	// ErrCodeTransient marks a failure expected to clear on a later attempt
	// (network error, provider throttling, 5xx).
	ErrCodeTransient ErrorCode = "transient"
)

// AppError carries a code alongside the message. Field names the offending input
// for validation and constraint errors.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Field   string
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

// newf only formats when args are given so literal '%' in messages survives.
func newf(code ErrorCode, format string, args ...any) *AppError {
	if len(args) == 0 {
		return &AppError{Code: code, Message: format}
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *AppError { return newf(ErrCodeNotFound, format, args...) }

func Validation(message string) *AppError { return &AppError{Code: ErrCodeValidation, Message: message} }

func Validationf(format string, args ...any) *AppError {
	return newf(ErrCodeValidation, format, args...)
}

// ValidationField is a validation error attributed to one input field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

func Internal(message string) *AppError { return &AppError{Code: ErrCodeInternal, Message: message} }

// Permanent builds an error that must not be retried.
func Permanent(message string) *AppError { return &AppError{Code: ErrCodePermanent, Message: message} }

func Permanentf(format string, args ...any) *AppError {
	return newf(ErrCodePermanent, format, args...)
}

// Transient builds an error that consumes a retry attempt.
func Transient(message string) *AppError { return &AppError{Code: ErrCodeTransient, Message: message} }

func Transientf(format string, args ...any) *AppError {
	return newf(ErrCodeTransient, format, args...)
}

// Wrap attaches code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// IsAppError reports whether any AppError in err's chain has code.
func IsAppError(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsValidation(err error) bool { return IsAppError(err, ErrCodeValidation) }
func IsPermanent(err error) bool  { return IsAppError(err, ErrCodePermanent) }
func IsTransient(err error) bool  { return IsAppError(err, ErrCodeTransient) }

// GetCode returns the code of the outermost AppError, or "" when there is none.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field of the outermost AppError.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
