// Package services holds the client core: the session manager, the profile
// synchronizer, the signup wizard and the progress aggregator, wired together
// by Core.
//
// # State and notification
//
// SessionManager owns the current session and ProfileSynchronizer owns the
// mirrored profile; other code only reads copies. Changes are pushed to
// registered listeners synchronously and in order. When the session goes
// away the profile mirror is cleared inside the same notification, so no
// reader can see a profile without a session.
//
// # Suspension and stale results
//
// Gateway calls are the only blocking points. The profile fetch triggered by
// a new session runs on its own goroutine; its result, like the result of an
// update, is applied only if its identity is still current and nothing newer
// was applied. In-flight calls are never cancelled, late answers are dropped.
//
// # Errors
//
// Failures are *AuthError, *ProfileError or *SignupError. Each matches one
// kind sentinel (ErrInvalidCredentials, ErrNoSession, ErrPasswordTooShort,
// ...) through errors.Is and carries the gateway's message verbatim where
// there is one. No failure leaves state half changed.
package services
