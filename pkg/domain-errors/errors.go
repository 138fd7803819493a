// Package domainerrors carries typed failure codes across component boundaries.
//
// Every rejected operation returns an *Error whose Code names the reason. Callers
// branch on codes with HasCode rather than string matching:
//
//	if dErrors.HasCode(err, dErrors.CodeAlreadyCompleted) { ... }
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a failure category.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"

	CodeAlreadyExists    Code = "already_exists"
	CodeAlreadyVerified  Code = "already_verified"
	CodeAlreadyCompleted Code = "already_completed"
	CodeAlreadyRetired   Code = "already_retired"

	CodeUnauthorized Code = "unauthorized"
	CodeNotOwner     Code = "not_owner"
	CodeInvalidBuyer Code = "invalid_buyer"
	CodeUnverified   Code = "unverified"

	CodeInvalidState       Code = "invalid_state"
	CodePreconditionFailed Code = "precondition_failed"

	CodeInsufficientQuantity Code = "insufficient_quantity"
	CodeInsufficientPayment  Code = "insufficient_payment"
	CodeInsufficientPremium  Code = "insufficient_premium"
	CodeInsufficientAmount   Code = "insufficient_amount"
	CodeAutoDeductDisabled   Code = "auto_deduct_disabled"

	CodeNotActive Code = "not_active"
	CodeExpired   Code = "expired"

	CodeOverflow  Code = "overflow"
	CodeUnderflow Code = "underflow"

	CodeRateLimited Code = "rate_limited"
	CodeTimeout     Code = "timeout"
	CodeUnavailable Code = "unavailable"
	CodeInternal    Code = "internal"
)

// Error is a coded domain failure. Err holds the wrapped cause, if any.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the outermost code in err's chain, or CodeInternal for
// uncoded errors. A nil error has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
