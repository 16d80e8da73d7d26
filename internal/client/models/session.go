package models

import "time"

// TokenHandle is the opaque credential material backing a Session.
// Only gateway implementations interpret it.
type TokenHandle struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the access token is past its expiry at now.
// A zero ExpiresAt never expires.
func (t TokenHandle) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Session is proof of an authenticated identity.
type Session struct {
	UserID   string
	Email    string
	IssuedAt time.Time
	Token    TokenHandle

	// Metadata is the enrollment data stored with the identity at signup.
	// It seeds the profile when the profile record turns out to be missing.
	Metadata SignupMetadata
}

// Clone returns a deep copy of s. Clone of nil is nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Metadata = s.Metadata.Clone()
	return &c
}

// SameSession reports whether a and b describe the same session state:
// both absent, or the same identity holding the same access token.
func SameSession(a, b *Session) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UserID == b.UserID && a.Token.AccessToken == b.Token.AccessToken
}

// SignUpResult is what the gateway returns for a new account. Session is set
// when the gateway signs the new identity in immediately.
type SignUpResult struct {
	UserID  string
	Session *Session
}
