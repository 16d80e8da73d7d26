package services

import (
	"context"
	"errors"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
)

// Auth failure kinds.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNetwork            = errors.New("network failure")
	ErrRateLimited        = errors.New("too many requests")
	ErrAuthFailed         = errors.New("authentication failed")
)

// Profile failure kinds.
var (
	ErrNoSession      = errors.New("no active session")
	ErrRemoteRejected = errors.New("profile update rejected")
	ErrSuperseded     = errors.New("superseded by a newer profile operation")
	ErrInvalidPatch   = errors.New("invalid profile update")
)

// Signup failure kinds. The first three are local validation failures and
// never reach the network.
var (
	ErrMissingFields    = errors.New("missing fields")
	ErrPasswordTooShort = errors.New("password too short")
	ErrInvalidChoice    = errors.New("invalid choice")
	ErrSubmission       = errors.New("signup failed")
	ErrWizardBusy       = errors.New("signup is being submitted")
	ErrWizardComplete   = errors.New("signup already completed")
	ErrWrongStep        = errors.New("not available in this step")
)

// kindError carries a failure kind, the message shown to the user and the
// underlying cause. errors.Is matches the kind.
type kindError struct {
	Kind    error
	Message string
	Err     error
}

func (e *kindError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *kindError) Is(target error) bool { return target == e.Kind }

func (e *kindError) Unwrap() error { return e.Err }

// AuthError is returned by SessionManager operations. Message is the
// gateway's own wording when there is one.
type AuthError struct{ kindError }

// ProfileError is returned by ProfileSynchronizer operations.
type ProfileError struct{ kindError }

// SignupError is returned by SignupWizard operations.
type SignupError struct{ kindError }

// Validation reports whether the failure was detected locally.
func (e *SignupError) Validation() bool {
	return e.Kind == ErrMissingFields || e.Kind == ErrPasswordTooShort || e.Kind == ErrInvalidChoice
}

func newAuthError(kind error, msg string, err error) *AuthError {
	return &AuthError{kindError{Kind: kind, Message: msg, Err: err}}
}

func newProfileError(kind error, msg string, err error) *ProfileError {
	return &ProfileError{kindError{Kind: kind, Message: msg, Err: err}}
}

func newSignupError(kind error, msg string, err error) *SignupError {
	return &SignupError{kindError{Kind: kind, Message: msg, Err: err}}
}

// authErrorFrom classifies a gateway failure.
func authErrorFrom(err error) *AuthError {
	kind := ErrAuthFailed
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		kind = ErrInvalidCredentials
	case errors.Is(err, gateway.ErrRateLimited):
		kind = ErrRateLimited
	case errors.Is(err, gateway.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		kind = ErrNetwork
	}
	return newAuthError(kind, gateway.Message(err), err)
}
