package gateway

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
)

// Claims is the access-token payload issued by the identity service.
type Claims struct {
	jwt.RegisteredClaims
	Email        string                `json:"email,omitempty"`
	UserMetadata models.SignupMetadata `json:"user_metadata"`
}

// SignToken signs c with HS256 under key.
func SignToken(c Claims, key []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	s, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// SessionFromToken decodes the claims of handle's access token into a
// Session. The signature is not checked: the client cannot hold the service
// key, and the token is only ever presented back to the service that issued it.
func SessionFromToken(handle models.TokenHandle) (*models.Session, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(handle.AccessToken, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("parse access token: missing subject")
	}

	s := &models.Session{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Token:    handle,
		Metadata: claims.UserMetadata,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	if s.Token.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		s.Token.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
