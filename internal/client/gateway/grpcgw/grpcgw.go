// Package grpcgw is the Gateway over gRPC. Requests and replies are
// google.protobuf.Struct messages carrying the same JSON documents the HTTP
// API uses; Ping uses the standard health service.
package grpcgw

import (
	"context"
	"errors"
	"time"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var _ gateway.Gateway = (*Gateway)(nil)

const ServiceName = "ieltswiz.identity.v1.Identity"

const (
	MethodSignIn        = "/" + ServiceName + "/SignIn"
	MethodSignUp        = "/" + ServiceName + "/SignUp"
	MethodSignOut       = "/" + ServiceName + "/SignOut"
	MethodRefresh       = "/" + ServiceName + "/Refresh"
	MethodGetUser       = "/" + ServiceName + "/GetUser"
	MethodGetProfile    = "/" + ServiceName + "/GetProfile"
	MethodUpsertProfile = "/" + ServiceName + "/UpsertProfile"
)

type Config struct {
	Address string
	// Timeout bounds every call. Zero leaves calls to the caller's context.
	Timeout time.Duration
}

type Option func(*Gateway)

func WithTokenStore(s gateway.TokenStore) Option { return func(g *Gateway) { g.store = s } }

func WithLogger(l logging.Logger) Option { return func(g *Gateway) { g.log = l } }

func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

// WithDialOptions appends to the dial options, e.g. a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(g *Gateway) { g.dialOpts = append(g.dialOpts, opts...) }
}

type Gateway struct {
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	timeout time.Duration
	tokens  *gateway.Tokens

	store    gateway.TokenStore
	log      logging.Logger
	now      func() time.Time
	dialOpts []grpc.DialOption
}

func New(cfg Config, opts ...Option) (*Gateway, error) {
	g := &Gateway{timeout: cfg.Timeout, log: logging.Nop{}, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	g.log = logging.Component(g.log, "grpcgw")
	g.tokens = gateway.NewTokens(g.store, g.log, g.now)

	dial := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(g.accessTokenInterceptor),
	}
	conn, err := grpc.NewClient(cfg.Address, append(dial, g.dialOpts...)...)
	if err != nil {
		return nil, err
	}
	g.conn = conn
	g.health = healthpb.NewHealthClient(conn)
	return g, nil
}

type tokenReply struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (g *Gateway) handleOf(r tokenReply) models.TokenHandle {
	h := models.TokenHandle{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	if r.ExpiresIn > 0 {
		h.ExpiresAt = g.now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return h
}

type userReply struct {
	ID           string                `json:"id"`
	Email        string                `json:"email"`
	UserMetadata models.SignupMetadata `json:"user_metadata"`
}

func (g *Gateway) CurrentSession(ctx context.Context) (*models.Session, error) {
	h, err := g.tokens.Valid(ctx, g.refresh)
	if errors.Is(err, gateway.ErrUnauthorized) {
		return nil, nil
	}
	if err != nil || h == nil {
		return nil, err
	}

	var u userReply
	err = g.call(ctx, MethodGetUser, nil, &u)
	if errors.Is(err, gateway.ErrUnauthorized) {
		g.log.Info(ctx, "saved session rejected by the service")
		g.tokens.Invalidate(ctx)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// the call may have refreshed the handle
	if cur := g.tokens.Handle(ctx); cur != nil {
		h = cur
	}
	s, err := gateway.SessionFromToken(*h)
	if err != nil {
		s = &models.Session{Token: *h}
	}
	s.UserID, s.Email, s.Metadata = u.ID, u.Email, u.UserMetadata
	if s.UserID == "" {
		return nil, gateway.NewError(gateway.ErrUnavailable, "session has no user id")
	}
	g.tokens.SetCurrent(s)
	return s, nil
}

func (g *Gateway) OnSessionChange(fn gateway.SessionListener) func() {
	return g.tokens.Subscribe(fn)
}

type credentials struct {
	Email    string                 `json:"email"`
	Password string                 `json:"password"`
	Data     *models.SignupMetadata `json:"data,omitempty"`
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var r tokenReply
	if err := g.call(ctx, MethodSignIn, credentials{Email: email, Password: password}, &r); err != nil {
		return nil, err
	}
	return g.adopt(ctx, r)
}

// adopt makes the issued token current without notifying listeners.
func (g *Gateway) adopt(ctx context.Context, r tokenReply) (*models.Session, error) {
	h := g.handleOf(r)
	s, err := gateway.SessionFromToken(h)
	if err != nil {
		return nil, gateway.WrapError(gateway.ErrUnavailable, "malformed access token", err)
	}
	g.tokens.Set(ctx, h, s, false)
	return s.Clone(), nil
}

type signupReply struct {
	UserID string `json:"user_id"`
	tokenReply
}

func (g *Gateway) SignUp(ctx context.Context, email, password string, meta models.SignupMetadata) (*models.SignUpResult, error) {
	var r signupReply
	if err := g.call(ctx, MethodSignUp, credentials{Email: email, Password: password, Data: &meta}, &r); err != nil {
		return nil, err
	}
	res := &models.SignUpResult{UserID: r.UserID}
	if r.AccessToken == "" {
		return res, nil
	}
	s, err := g.adopt(ctx, r.tokenReply)
	if err != nil {
		return nil, err
	}
	if res.UserID == "" {
		res.UserID = s.UserID
	}
	res.Session = s
	return res, nil
}

func (g *Gateway) SignOut(ctx context.Context) error {
	if g.tokens.Handle(ctx) != nil {
		err := g.call(ctx, MethodSignOut, nil, nil)
		if err != nil && !errors.Is(err, gateway.ErrUnauthorized) {
			return err
		}
	}
	g.tokens.Forget(ctx)
	return nil
}

type profileRequest struct {
	ID string `json:"id"`
}

func (g *Gateway) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := g.call(ctx, MethodGetProfile, profileRequest{ID: userID}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

type upsertRequest struct {
	ID string `json:"id"`
	models.ProfilePatch
}

func (g *Gateway) UpsertProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.Profile, error) {
	if err := patch.Validate(); err != nil {
		return nil, gateway.WrapError(gateway.ErrRejected, err.Error(), err)
	}
	var p models.Profile
	if err := g.call(ctx, MethodUpsertProfile, upsertRequest{ID: userID, ProfilePatch: patch}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return mapError(err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return gateway.NewError(gateway.ErrUnavailable, "service is "+resp.Status.String())
	}
	return nil
}

func (g *Gateway) Close() error {
	return g.conn.Close()
}
