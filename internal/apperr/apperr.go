// Package apperr defines the error taxonomy surfaced by the relay. Every
// failure carries a machine-discriminable kind; handlers map kinds to
// transport status codes and never expose provider internals.
package apperr

import (
	"errors"
	"fmt"
)

// Kind discriminates failure classes.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindModerationRejected  Kind = "moderation_rejected"
	KindProvider            Kind = "provider_error"
	KindInternal            Kind = "internal_error"
)

// Error is a kinded application error.
type Error struct {
	Kind    Kind
	Message string

	// Remaining is populated for KindInsufficientCredits.
	Remaining int
	// Categories is populated for KindModerationRejected.
	Categories []string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed client input. No side effects occurred.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound reports an unknown conversation.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden reports a conversation owned by another identity.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// InsufficientCredits reports an exhausted credit balance.
func InsufficientCredits(remaining int) *Error {
	return &Error{
		Kind:      KindInsufficientCredits,
		Message:   "insufficient credits",
		Remaining: remaining,
	}
}

// ModerationRejected reports content flagged by the moderation check.
func ModerationRejected(categories []string) *Error {
	return &Error{
		Kind:       KindModerationRejected,
		Message:    "message contains inappropriate content",
		Categories: categories,
	}
}

// Provider wraps a completion-gateway failure. The caller-visible message
// is generic; the underlying error stays attached for logs.
func Provider(err error) *Error {
	return &Error{
		Kind:    KindProvider,
		Message: "failed to generate a response, please try again",
		Err:     err,
	}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: "failed to process message",
		Err:     err,
	}
}

// As extracts an *Error from err, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// KindOf returns the kind of err, defaulting to KindInternal for errors
// outside the taxonomy.
func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return KindInternal
}
