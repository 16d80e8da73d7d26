package restgw

import (
	"context"
	"net/http"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"golang.org/x/oauth2"
)

type userResponse struct {
	ID           string                `json:"id"`
	Email        string                `json:"email"`
	UserMetadata models.SignupMetadata `json:"user_metadata"`
}

func (g *Gateway) user(ctx context.Context, access string) (*userResponse, error) {
	var u userResponse
	if err := g.do(ctx, http.MethodGet, "/auth/v1/user", access, nil, &u, nil); err != nil {
		return nil, err
	}
	return &u, nil
}

// sessionFor builds a session from the token claims, letting the user record
// override them when given.
func sessionFor(h models.TokenHandle, u *userResponse) (*models.Session, error) {
	s, err := gateway.SessionFromToken(h)
	if err != nil {
		if u == nil {
			return nil, gateway.WrapError(gateway.ErrUnavailable, "malformed access token", err)
		}
		s = &models.Session{Token: h}
	}
	if u != nil {
		if u.ID != "" {
			s.UserID = u.ID
		}
		if u.Email != "" {
			s.Email = u.Email
		}
		s.Metadata = u.UserMetadata.Clone()
	}
	if s.UserID == "" {
		return nil, gateway.NewError(gateway.ErrUnavailable, "session has no user id")
	}
	return s, nil
}

// resolve decodes tok into a session, asking the service for the user when
// the token is not a readable JWT.
func (g *Gateway) resolve(ctx context.Context, tok *oauth2.Token) (*models.Session, error) {
	h := handleOf(tok)
	if s, err := gateway.SessionFromToken(h); err == nil {
		return s, nil
	}
	u, err := g.user(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	return sessionFor(h, u)
}

// refreshGrant runs the OAuth2 refresh grant for old.
func (g *Gateway) refreshGrant(ctx context.Context, old models.TokenHandle) (models.TokenHandle, *models.Session, error) {
	src := g.oauth.TokenSource(g.oauthContext(ctx), &oauth2.Token{RefreshToken: old.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return models.TokenHandle{}, nil, tokenError(err)
	}
	s, err := g.resolve(ctx, tok)
	if err != nil {
		return models.TokenHandle{}, nil, err
	}
	return handleOf(tok), s, nil
}

// authorized runs fn with a valid access token.
func (g *Gateway) authorized(ctx context.Context, fn func(access string) error) error {
	h, err := g.tokens.Valid(ctx, g.refreshGrant)
	if err != nil {
		return err
	}
	if h == nil {
		return gateway.NewError(gateway.ErrUnauthorized, "not signed in")
	}
	return fn(h.AccessToken)
}
