package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("gateway unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrNotFound     = errors.New("not found")
	ErrRejected     = errors.New("request rejected")
)

// Error is a gateway failure of a given kind. Message is the remote
// service's own wording, kept for display.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// NewError builds an Error of kind with the remote message msg.
func NewError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError builds an Error of kind around a transport error.
func WrapError(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the remote message carried by err, or err's text when it
// carries none.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		if gerr.Message != "" {
			return gerr.Message
		}
		return gerr.Kind.Error()
	}
	return err.Error()
}

// KindOf returns the sentinel err matches, or nil when it matches none.
func KindOf(err error) error {
	for _, k := range []error{ErrUnavailable, ErrUnauthorized, ErrRateLimited, ErrNotFound, ErrRejected} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
