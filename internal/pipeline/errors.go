package pipeline

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidParameters   ErrorCode = "invalid-parameters"
	CodeUpstreamUnavailable ErrorCode = "upstream-unavailable"
	CodeUpstreamBlocked     ErrorCode = "upstream-blocked"
	CodeOCRFailure          ErrorCode = "ocr-failure"
	CodeValidationFailure   ErrorCode = "validation-failure"
	CodePersistenceFailure  ErrorCode = "persistence-failure"
	CodeCanceled            ErrorCode = "canceled"
)

// Validation failure reasons.
const (
	ReasonMalformedJSON   = "malformed-json"
	ReasonClassIDMismatch = "classId-mismatch"
)

// ErrUpstreamBlocked is returned by generators when the service refused the
// prompt or the answer on safety grounds.
var ErrUpstreamBlocked = errors.New("generation blocked by safety filter")

// Error is the single failure type a pipeline run reports.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether re-running the whole pipeline may succeed
// without new input from the caller.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeInvalidParameters, CodeCanceled:
		return false
	default:
		return true
	}
}

func invalidParameter(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidParameters, Reason: fmt.Sprintf(format, args...)}
}

func validationFailure(reason string) *Error {
	return &Error{Code: CodeValidationFailure, Reason: reason}
}

func missingField(name string) *Error {
	return validationFailure("missing-field:" + name)
}

// AsError extracts a pipeline error from err.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}
