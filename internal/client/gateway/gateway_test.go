package gateway

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MatchesKindAndKeepsMessage(t *testing.T) {
	err := fmt.Errorf("sign in error: %w", NewError(ErrUnauthorized, "Invalid login credentials"))

	require.ErrorIs(t, err, ErrUnauthorized)
	require.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "Invalid login credentials", Message(err))
	assert.Equal(t, ErrUnauthorized, KindOf(err))
}

func TestError_UnwrapsTransportError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapError(ErrUnavailable, "", cause)

	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, ErrUnavailable.Error(), Message(err))
	assert.Equal(t, "gateway unavailable", err.Error())
}

func TestMessage_PlainError(t *testing.T) {
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "", Message(nil))
	assert.Nil(t, KindOf(errors.New("boom")))
}

func TestSessionFromToken_RoundTrip(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
		},
		Email:        "a@example.com",
		UserMetadata: models.SignupMetadata{DisplayName: "Aziz", TargetBand: 8.0},
	}
	tok, err := SignToken(c, []byte("secret"))
	require.NoError(t, err)

	s, err := SessionFromToken(models.TokenHandle{AccessToken: tok, RefreshToken: "r"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "a@example.com", s.Email)
	assert.True(t, issued.Equal(s.IssuedAt))
	assert.True(t, issued.Add(time.Hour).Equal(s.Token.ExpiresAt))
	assert.Equal(t, "r", s.Token.RefreshToken)
	assert.Equal(t, "Aziz", s.Metadata.DisplayName)
	assert.Equal(t, models.BandScore(8.0), s.Metadata.TargetBand)
}

func TestSessionFromToken_Rejects(t *testing.T) {
	_, err := SessionFromToken(models.TokenHandle{AccessToken: "not-a-jwt"})
	require.Error(t, err)

	tok, err := SignToken(Claims{}, []byte("k"))
	require.NoError(t, err)
	_, err = SessionFromToken(models.TokenHandle{AccessToken: tok})
	require.ErrorContains(t, err, "missing subject")
}
