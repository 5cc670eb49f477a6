// Package apperr classifies service failures so transports can map them
// to a response without knowing every sentinel error.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind string

const (
	KindUnknown       Kind = "UNKNOWN"
	KindAuthorization Kind = "AUTHORIZATION"
	KindInvalidState  Kind = "INVALID_STATE"
	KindAlreadyExists Kind = "ALREADY_EXISTS"
	KindNotFound      Kind = "NOT_FOUND"
	KindInvalidInput  Kind = "INVALID_INPUT"
	KindTransient     Kind = "TRANSIENT_IO"
)

// Error is a classified error. Sentinels are created once with New and
// compared with errors.Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
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

// New returns a sentinel error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Transient wraps a backend failure (database, cache, network).
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransient, Message: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
