// Package apperr defines the typed domain errors returned by services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure. Handlers map kinds to HTTP status codes and
// localized messages; services never return bare strings.
type Kind string

const (
	KindEventNotRegistrable Kind = "event_not_registrable"
	KindAlreadyRegistered   Kind = "already_registered"
	KindNotFound            Kind = "not_found"
	KindAlreadyCancelled    Kind = "already_cancelled"
	KindNotConfirmed        Kind = "not_confirmed"
	KindAlreadyCheckedIn    Kind = "already_checked_in"
	KindInvalidToken        Kind = "invalid_token"
	KindWindowClosed        Kind = "window_closed"
	KindNotAttended         Kind = "not_attended"
	KindRenderFailed        Kind = "render_failed"
	KindStorageUnavailable  Kind = "storage_unavailable"
	KindForbidden           Kind = "forbidden"
	KindValidation          Kind = "validation"
	KindUnauthorized        Kind = "unauthorized"
	KindInternal            Kind = "internal"
)

// Infrastructure reports whether the kind stems from a dependency failure rather
// than from the caller's input or the entity's state.
func (k Kind) Infrastructure() bool {
	switch k {
	case KindRenderFailed, KindStorageUnavailable, KindInternal:
		return true
	}
	return false
}

// Error is a domain error carrying a kind, an optional message key refinement
// (e.g. which side of the window was hit) and the underlying cause.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Key is the translation key for the error: "<kind>" or "<kind>.<reason>".
func (e *Error) Key() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + "." + e.Reason
}

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap returns an error of the given kind wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// WithReason returns an error of the given kind refined by reason.
func WithReason(kind Kind, reason, msg string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for errors outside this package.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
