package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies analysis failures. Transient, Timeout and InvalidResponse
// are absorbed by the retry loop until the budget is exhausted; Rejected and
// ReferentialIntegrity surface immediately; Expired is terminal.
type Kind string

const (
	KindTransient            Kind = "transient"
	KindRejected             Kind = "rejected"
	KindInvalidResponse      Kind = "invalid_response"
	KindTimeout              Kind = "timeout"
	KindExpired              Kind = "expired"
	KindReferentialIntegrity Kind = "referential_integrity"
)

// Retryable reports whether failures of this kind may be retried.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransient, KindTimeout, KindInvalidResponse:
		return true
	default:
		return false
	}
}

// Error is a machine-readable analysis failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("analysis %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed analysis error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind from err. Untyped errors are classified
// transient, matching how network-level failures reach the retry loop.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransient
}

// MessageOf returns the human-readable message attached to err.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Retryable reports whether err may be retried under the client's budget.
func Retryable(err error) bool {
	return KindOf(err).Retryable()
}
