// Package errs is the error taxonomy shared by every layer. Services return
// *Error values (or wrap them); the HTTP layer maps Kind to a status code and
// only ever shows Message to the client.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindConflict
	KindNotFound
	KindRateLimited
	KindStorageUnavailable
	// KindReconciliation marks a failed compensation that left state behind
	KindReconciliation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindStorageUnavailable:
		return "storage_unavailable"
	case KindReconciliation:
		return "reconciliation"
	default:
		return "internal"
	}
}

// Error carries a kind, a client-safe message and an optional cause
type Error struct {
	Kind    Kind
	Message string
	// RetryAfter is set in seconds for KindRateLimited
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error without a cause
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches cause to a new classified error. The cause is logged,
// never shown.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Validation is shorthand for a KindValidation error
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Storage wraps a store failure
func Storage(cause error) *Error {
	return Wrap(KindStorageUnavailable, "Service temporarily unavailable. Please try again.", cause)
}

// RateLimited builds a rejection carrying the retry hint
func RateLimited(message string, retryAfter int) *Error {
	return &Error{Kind: KindRateLimited, Message: message, RetryAfter: retryAfter}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "An unexpected error occurred."
}

// RetryAfterOf returns the retry hint in seconds, or 0
func RetryAfterOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
