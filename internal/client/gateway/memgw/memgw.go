// Package memgw is an in-process Gateway. It keeps accounts, sessions and
// profiles in memory and issues real signed tokens, so the client core can run
// without a network (offline demo mode) and tests can drive it directly.
package memgw

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"golang.org/x/crypto/bcrypt"
)

var _ gateway.Gateway = (*Gateway)(nil)

// Op names a gateway operation for fault injection.
type Op string

const (
	OpCurrentSession Op = "current_session"
	OpSignIn         Op = "sign_in"
	OpSignUp         Op = "sign_up"
	OpSignOut        Op = "sign_out"
	OpGetProfile     Op = "get_profile"
	OpUpsertProfile  Op = "upsert_profile"
	OpPing           Op = "ping"
)

const minPasswordLen = 6

type account struct {
	id        string
	email     string
	hash      []byte
	meta      models.SignupMetadata
	createdAt time.Time
}

type Gateway struct {
	mu        sync.Mutex
	accounts  map[string]*account // keyed by normalized email
	profiles  map[string]*models.Profile
	current   *models.Session
	listeners map[int]gateway.SessionListener
	nextID    int
	failures  map[Op]error
	calls     map[Op]int
	closed    bool

	key        []byte
	ttl        time.Duration
	cost       int
	autoSignIn bool
	now        func() time.Time
}

type Option func(*Gateway)

// WithTokenTTL sets the lifetime of issued access tokens.
func WithTokenTTL(d time.Duration) Option { return func(g *Gateway) { g.ttl = d } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option { return func(g *Gateway) { g.cost = cost } }

// WithoutAutoSignIn makes SignUp return no session, as a service that
// requires e-mail confirmation would.
func WithoutAutoSignIn() Option { return func(g *Gateway) { g.autoSignIn = false } }

func New(opts ...Option) *Gateway {
	key := make([]byte, 32)
	_, _ = rand.Read(key)

	g := &Gateway{
		accounts:   make(map[string]*account),
		profiles:   make(map[string]*models.Profile),
		listeners:  make(map[int]gateway.SessionListener),
		failures:   make(map[Op]error),
		calls:      make(map[Op]int),
		key:        key,
		ttl:        time.Hour,
		cost:       bcrypt.DefaultCost,
		autoSignIn: true,
		now:        time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// FailNext makes the next call of op return err instead of running.
func (g *Gateway) FailNext(op Op, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = err
}

// Calls reports how many times op was invoked, failed calls included.
func (g *Gateway) Calls(op Op) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// enter records a call and returns an injected failure or a closed error.
// Caller holds g.mu.
func (g *Gateway) enter(op Op) error {
	g.calls[op]++
	if g.closed {
		return gateway.NewError(gateway.ErrUnavailable, "gateway closed")
	}
	if err, ok := g.failures[op]; ok {
		delete(g.failures, op)
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (g *Gateway) CurrentSession(ctx context.Context) (*models.Session, error) {
	g.mu.Lock()
	if err := g.enter(OpCurrentSession); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	cur := g.current
	expired := cur != nil && cur.Token.Expired(g.now())
	if expired {
		g.current = nil
	}
	listeners := g.snapshotListeners()
	g.mu.Unlock()

	if expired {
		for _, fn := range listeners {
			fn(nil)
		}
		return nil, nil
	}
	return cur.Clone(), nil
}

func (g *Gateway) OnSessionChange(fn gateway.SessionListener) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
	}
}

func (g *Gateway) snapshotListeners() []gateway.SessionListener {
	out := make([]gateway.SessionListener, 0, len(g.listeners))
	for _, fn := range g.listeners {
		out = append(out, fn)
	}
	return out
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpSignIn); err != nil {
		return nil, err
	}
	if email == "" || password == "" {
		return nil, gateway.NewError(gateway.ErrRejected, "missing email or password")
	}

	acc, ok := g.accounts[normalizeEmail(email)]
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, gateway.NewError(gateway.ErrUnauthorized, "Invalid login credentials")
	}

	s, err := g.issue(acc)
	if err != nil {
		return nil, err
	}
	g.current = s
	return s.Clone(), nil
}

func (g *Gateway) SignUp(ctx context.Context, email, password string, meta models.SignupMetadata) (*models.SignUpResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpSignUp); err != nil {
		return nil, err
	}

	key := normalizeEmail(email)
	if key == "" {
		return nil, gateway.NewError(gateway.ErrRejected, "email is required")
	}
	if len(password) < minPasswordLen {
		return nil, gateway.NewError(gateway.ErrRejected, "Password should be at least 6 characters")
	}
	if _, exists := g.accounts[key]; exists {
		return nil, gateway.NewError(gateway.ErrRejected, "User already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return nil, gateway.WrapError(gateway.ErrRejected, "password could not be stored", err)
	}
	acc := &account{
		id:        uuid.NewString(),
		email:     key,
		hash:      hash,
		meta:      meta.Clone(),
		createdAt: g.now(),
	}
	g.accounts[key] = acc

	res := &models.SignUpResult{UserID: acc.id}
	if g.autoSignIn {
		s, err := g.issue(acc)
		if err != nil {
			return nil, err
		}
		g.current = s
		res.Session = s.Clone()
	}
	return res, nil
}

// issue signs a new access token for acc. Caller holds g.mu.
func (g *Gateway) issue(acc *account) (*models.Session, error) {
	now := g.now()
	claims := gateway.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.id,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
		Email:        acc.email,
		UserMetadata: acc.meta.Clone(),
	}
	tok, err := gateway.SignToken(claims, g.key)
	if err != nil {
		return nil, gateway.WrapError(gateway.ErrUnavailable, "token could not be issued", err)
	}
	return gateway.SessionFromToken(models.TokenHandle{
		AccessToken:  tok,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    now.Add(g.ttl),
	})
}

func (g *Gateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpSignOut); err != nil {
		return err
	}
	g.current = nil
	return nil
}

// Invalidate revokes the current session from the service side and pushes
// the change to listeners.
func (g *Gateway) Invalidate() {
	g.mu.Lock()
	had := g.current != nil
	g.current = nil
	listeners := g.snapshotListeners()
	g.mu.Unlock()

	if !had {
		return
	}
	for _, fn := range listeners {
		fn(nil)
	}
}

// authorize enforces that only the signed-in identity touches its profile.
// Caller holds g.mu.
func (g *Gateway) authorize(userID string) error {
	if g.current == nil || g.current.UserID != userID {
		return gateway.NewError(gateway.ErrUnauthorized, "not allowed to access this profile")
	}
	return nil
}

func (g *Gateway) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpGetProfile); err != nil {
		return nil, err
	}
	if err := g.authorize(userID); err != nil {
		return nil, err
	}
	p, ok := g.profiles[userID]
	if !ok {
		return nil, gateway.NewError(gateway.ErrNotFound, "profile not found")
	}
	return p.Clone(), nil
}

func (g *Gateway) UpsertProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.Profile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpUpsertProfile); err != nil {
		return nil, err
	}
	if err := g.authorize(userID); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, gateway.WrapError(gateway.ErrRejected, err.Error(), err)
	}

	p, ok := g.profiles[userID]
	if !ok {
		p = models.NewProfile(userID, g.current.Email)
		p.CreatedAt = g.now()
	}
	patch.ApplyTo(p)
	g.profiles[userID] = p
	return p.Clone(), nil
}

// Profile returns the stored profile of userID without authorization, for
// inspection in tests and the CLI.
func (g *Gateway) Profile(userID string) (*models.Profile, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.profiles[userID]
	return p.Clone(), ok
}

func (g *Gateway) Ping(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enter(OpPing)
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}
