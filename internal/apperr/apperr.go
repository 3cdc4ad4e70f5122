// Package apperr classifies failures reported by the external call adapters.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of an application error
type Kind string

const (
	RateLimited       Kind = "rate-limited"
	MalformedResponse Kind = "malformed-response"
	TransportFailure  Kind = "transport-failure"
	RemoteFailure     Kind = "remote-failure" // remote answered with an explicit error
	Internal          Kind = "internal"
	Shutdown          Kind = "shutdown"
)

// Error is a definite failure returned by an external call
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// New creates an Error of the given kind
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap creates an Error of the given kind around err
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify returns err as an *Error. Errors the adapters did not classify
// are reported as transport failures.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(TransportFailure, err)
}

// KindOf returns the kind of err, or "" if err is nil
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}
