package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess     Code = 0
	CodeInternal    Code = 1
	CodeUsage       Code = 2
	CodeAuth        Code = 10
	CodeRateLimited Code = 11
	CodeUnavailable Code = 12
	CodeUnsupported Code = 13
	CodeBlocked     Code = 16
	CodeExecution   Code = 17
)

// Reason is a stable string code attached to every engine rejection. Callers
// branch on reasons, not on messages.
type Reason string

const (
	ReasonMissingFields        Reason = "MISSING_FIELDS"
	ReasonInvalidFormat        Reason = "INVALID_FORMAT"
	ReasonConfirmationRequired Reason = "MAINNET_CONFIRMATION_REQUIRED"
	ReasonInvalidConfirmToken  Reason = "INVALID_CONFIRM_TOKEN"
	ReasonPolicyRejected       Reason = "POLICY_REJECTED"
	ReasonSessionNotFound      Reason = "SESSION_NOT_FOUND"
	ReasonPreviewFailed        Reason = "PREVIEW_FAILED"
	ReasonExecutionFailed      Reason = "EXECUTION_FAILED"
	ReasonCommandBlocked       Reason = "COMMAND_BLOCKED"
)

// Error is a typed CLI error that carries a stable error code, an optional
// reason string, and structured details (e.g. the expected confirm token).
type Error struct {
	Code      Code
	Reason    Reason
	Message   string
	Details   map[string]any
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewReason builds an error with a machine-readable reason code.
func NewReason(code Code, reason Reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// WithDetail attaches a structured detail field and returns the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithRetryable marks whether re-submitting the failed call is sane.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// ReasonOf extracts the reason code from any error, or empty when untyped.
func ReasonOf(err error) Reason {
	if typed, ok := As(err); ok {
		return typed.Reason
	}
	return ""
}

// IsRetryable reports whether the error was classified as transient.
func IsRetryable(err error) bool {
	if typed, ok := As(err); ok {
		return typed.Retryable
	}
	return false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok {
		return int(cliErr.Code)
	}
	return int(CodeInternal)
}
