// Package domainerrors defines the coded error type shared by all vitae
// services. Services attach a Code at the point where an infrastructure or
// invariant failure becomes a domain outcome; transports map codes to their
// own status vocabulary without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a domain error class. Codes are part of the API surface:
// they appear verbatim in HTTP error envelopes and in logs.
type Code string

// Generic codes (transport-shaped).
const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
)

// Registry codes. These mirror the externally observable failure modes of
// the attestation registry and the reward program.
const (
	CodeDuplicateClaim       Code = "duplicate_claim"
	CodeNonexistentClaim     Code = "nonexistent_claim"
	CodeDuplicateEndorsement Code = "duplicate_endorsement"
	CodeCallerNotOwner       Code = "caller_not_owner"
	CodeDataTooLarge         Code = "data_too_large"
	CodePermissionDenied     Code = "permission_denied"
	CodePayoutFailed         Code = "payout_failed"
	CodeZeroBalance          Code = "zero_balance"
)

// Error is a coded domain error. Construct via New or Wrap; never compare
// messages, compare codes with HasCode.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New returns a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. The cause stays
// reachable through errors.Unwrap for logging and tests.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability in tests.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code carried by err, or CodeInternal when err is not a
// domain error. Transports use it for status mapping; callers that need to
// distinguish "no code" should use HasCode instead.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
