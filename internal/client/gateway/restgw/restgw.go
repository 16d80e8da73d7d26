// Package restgw is the Gateway for an HTTP/JSON identity and profile
// service. Tokens come from OAuth2 password and refresh grants at
// {base}/auth/v1/token; profiles live in a PostgREST-style table at
// {base}/rest/v1/profiles.
package restgw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
	"golang.org/x/oauth2"
)

var _ gateway.Gateway = (*Gateway)(nil)

const clientID = "ielts-wiz-cli"

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Option func(*Gateway)

// WithHTTPClient sets the client whose transport carries every request.
func WithHTTPClient(c *http.Client) Option { return func(g *Gateway) { g.http = c } }

func WithTokenStore(s gateway.TokenStore) Option { return func(g *Gateway) { g.store = s } }

func WithLogger(l logging.Logger) Option { return func(g *Gateway) { g.log = l } }

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

type Gateway struct {
	base   string
	http   *http.Client
	oauth  *oauth2.Config
	store  gateway.TokenStore
	log    logging.Logger
	now    func() time.Time
	tokens *gateway.Tokens
}

func New(cfg Config, opts ...Option) (*Gateway, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	g := &Gateway{
		base: base,
		http: &http.Client{},
		log:  logging.Nop{},
		now:  time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	timeout := g.http.Timeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	transport := g.http.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	g.http = &http.Client{
		Timeout:   timeout,
		Transport: &headerTransport{base: transport, apiKey: cfg.APIKey},
	}
	g.log = logging.Component(g.log, "restgw")
	g.tokens = gateway.NewTokens(g.store, g.log, g.now)
	g.oauth = &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  base + "/auth/v1/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return g, nil
}

// oauthContext makes the oauth2 package use the gateway's HTTP client.
func (g *Gateway) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.http)
}

func handleOf(t *oauth2.Token) models.TokenHandle {
	return models.TokenHandle{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, ExpiresAt: t.Expiry}
}

// CurrentSession restores the saved handle, refreshing it when expired, and
// asks the service whether it is still valid. A handle the service rejects is
// dropped and nil is returned.
func (g *Gateway) CurrentSession(ctx context.Context) (*models.Session, error) {
	h, err := g.tokens.Valid(ctx, g.refreshGrant)
	if errors.Is(err, gateway.ErrUnauthorized) {
		return nil, nil
	}
	if err != nil || h == nil {
		return nil, err
	}

	u, err := g.user(ctx, h.AccessToken)
	if errors.Is(err, gateway.ErrUnauthorized) {
		g.log.Info(ctx, "saved session rejected by the service")
		g.tokens.Invalidate(ctx)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s, err := sessionFor(*h, u)
	if err != nil {
		return nil, err
	}
	g.tokens.SetCurrent(s)
	return s, nil
}

func (g *Gateway) OnSessionChange(fn gateway.SessionListener) func() {
	return g.tokens.Subscribe(fn)
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	tok, err := g.oauth.PasswordCredentialsToken(g.oauthContext(ctx), email, password)
	if err != nil {
		return nil, tokenError(err)
	}
	s, err := g.resolve(ctx, tok)
	if err != nil {
		return nil, err
	}
	g.tokens.Set(ctx, handleOf(tok), s, false)
	return s.Clone(), nil
}

type signupRequest struct {
	Email    string                `json:"email"`
	Password string                `json:"password"`
	Data     models.SignupMetadata `json:"data"`
}

type signupResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	User         *userResponse `json:"user"`
	ID           string        `json:"id"`
}

// SignUp creates the account. Services that confirm e-mail addresses answer
// with the user only; then no session is returned.
func (g *Gateway) SignUp(ctx context.Context, email, password string, meta models.SignupMetadata) (*models.SignUpResult, error) {
	var resp signupResponse
	req := signupRequest{Email: email, Password: password, Data: meta}
	if err := g.do(ctx, http.MethodPost, "/auth/v1/signup", "", req, &resp, nil); err != nil {
		return nil, err
	}

	res := &models.SignUpResult{UserID: resp.ID}
	if resp.User != nil && resp.User.ID != "" {
		res.UserID = resp.User.ID
	}
	if resp.AccessToken == "" {
		if res.UserID == "" {
			return nil, gateway.NewError(gateway.ErrUnavailable, "signup response has no user")
		}
		return res, nil
	}

	tok := &oauth2.Token{AccessToken: resp.AccessToken, TokenType: "Bearer", RefreshToken: resp.RefreshToken}
	if resp.ExpiresIn > 0 {
		tok.Expiry = g.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	s, err := g.resolve(ctx, tok)
	if err != nil {
		return nil, err
	}
	g.tokens.Set(ctx, handleOf(tok), s, false)
	if res.UserID == "" {
		res.UserID = s.UserID
	}
	res.Session = s.Clone()
	return res, nil
}

// SignOut revokes the session remotely and forgets it. A token the service
// no longer accepts counts as signed out.
func (g *Gateway) SignOut(ctx context.Context) error {
	if h := g.tokens.Handle(ctx); h != nil {
		err := g.do(ctx, http.MethodPost, "/auth/v1/logout", h.AccessToken, nil, nil, nil)
		if err != nil && !errors.Is(err, gateway.ErrUnauthorized) {
			return err
		}
	}
	g.tokens.Forget(ctx)
	return nil
}

func (g *Gateway) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var rows []models.Profile
	path := "/rest/v1/profiles?select=*&id=eq." + url.QueryEscape(userID)
	err := g.authorized(ctx, func(access string) error {
		return g.do(ctx, http.MethodGet, path, access, nil, &rows, nil)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gateway.NewError(gateway.ErrNotFound, "profile not found")
	}
	return &rows[0], nil
}

type upsertRow struct {
	ID string `json:"id"`
	models.ProfilePatch
}

func (g *Gateway) UpsertProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.Profile, error) {
	if err := patch.Validate(); err != nil {
		return nil, gateway.WrapError(gateway.ErrRejected, err.Error(), err)
	}

	var rows []models.Profile
	hdr := http.Header{"Prefer": {"resolution=merge-duplicates,return=representation"}}
	err := g.authorized(ctx, func(access string) error {
		return g.do(ctx, http.MethodPost, "/rest/v1/profiles", access, upsertRow{ID: userID, ProfilePatch: patch}, &rows, hdr)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gateway.NewError(gateway.ErrUnavailable, "upsert returned no record")
	}
	return &rows[0], nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.do(ctx, http.MethodGet, "/auth/v1/health", "", nil, nil, nil)
}

func (g *Gateway) Close() error {
	g.http.CloseIdleConnections()
	return nil
}
