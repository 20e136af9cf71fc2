// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown errors
//   - Validation errors (100-199): Bad parameters, time rewinds, duplicated requests
//   - Account errors (200-299): Stopped accounts, registry conflicts
//   - Order errors (300-399): Price limits, cash and position sufficiency, liquidity
//   - Market data errors (400-499): Feed failures and missing valuation data
//   - Persistence errors (500-599): Snapshot and bill export failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeBadParameter, "bid time is outside the backtest window")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeCashError, "cash %.2f cannot afford one lot of %s", cash, security)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeFeedFailed, "failed to fetch price limits", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeTimeRewind) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error is a failure carrying the code callers branch on.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func New(code ErrorCode, message string) *Error {
	return Wrap(code, message, nil)
}

func Newf(code ErrorCode, format string, args ...any) *Error {
	return Wrap(code, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches code and message to cause. A nil cause is allowed.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// Error renders as "[reason] message: cause", reason being the code's name.
func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}

	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is and As forward to the standard library so callers need one errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode returns the code of the outermost *Error in err's chain, or
// ErrCodeUnknown when there is none.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsOrderRejection reports whether err rejects a single order without
// touching the account (price limits, cash, position or liquidity).
func IsOrderRejection(err error) bool {
	code := GetCode(err)

	return code >= 300 && code < 400
}
