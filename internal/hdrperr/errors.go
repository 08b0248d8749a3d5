// Package hdrperr classifies pipeline failures into a small set of kinds so
// callers can map them to exit codes and response payloads without string
// matching.
package hdrperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorises an error for reporting purposes.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindExternalUnavailable
	KindTimeout
	KindParse
)

// String returns the stable name used in logs and responses.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindExternalUnavailable:
		return "external_unavailable"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	default:
		return "internal"
	}
}

// Error is a classified error. It wraps an underlying cause when one exists.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil err returns nil.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err. Unclassified errors map to KindInternal,
// except context cancellation and deadline errors which map to KindTimeout.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// IsTimeout reports whether err is a deadline or cancellation failure.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}
