package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultRestoreTimeout bounds the startup session lookup.
const DefaultRestoreTimeout = 10 * time.Second

// SessionListener observes session transitions. A nil session is the
// anonymous state. Listeners run synchronously, in registration order, and
// must not call back into the SessionManager.
type SessionListener func(s *models.Session)

// CommitHook runs while a transition is published, under the lock that
// guards Current, so no caller of Current can observe s without the hook's
// effect. Hooks must not block or call back into the SessionManager.
type CommitHook func(s *models.Session)

type listenerEntry[F any] struct {
	id int
	fn F
}

// SessionManager owns the current session. Every transition (restore,
// sign-in, sign-out, invalidation pushed by the gateway) is delivered to
// listeners exactly once and in the order the transitions happened.
type SessionManager struct {
	gw             gateway.Gateway
	log            logging.Logger
	restoreTimeout time.Duration

	// notifyMu is held across a transition and its delivery.
	notifyMu sync.Mutex

	mu        sync.Mutex
	current   *models.Session
	version   uint64
	restored  bool
	listeners []listenerEntry[SessionListener]
	hooks     []listenerEntry[CommitHook]
	nextID    int

	unsubscribeGateway func()
}

func NewSessionManager(gw gateway.Gateway, log logging.Logger, restoreTimeout time.Duration) *SessionManager {
	if log == nil {
		log = logging.Nop{}
	}
	if restoreTimeout <= 0 {
		restoreTimeout = DefaultRestoreTimeout
	}
	m := &SessionManager{
		gw:             gw,
		log:            logging.Component(log, "session_manager"),
		restoreTimeout: restoreTimeout,
	}
	m.unsubscribeGateway = gw.OnSessionChange(m.onGatewayChange)
	return m
}

// Current returns a copy of the current session, or nil.
func (m *SessionManager) Current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Subscribe registers fn for all later transitions.
func (m *SessionManager) Subscribe(fn SessionListener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, listenerEntry[SessionListener]{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnCommit registers fn for all later transitions and runs it once with the
// current session before returning.
func (m *SessionManager) OnCommit(fn CommitHook) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.hooks = append(m.hooks, listenerEntry[CommitHook]{id: id, fn: fn})
	fn(m.current.Clone())

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, h := range m.hooks {
			if h.id == id {
				m.hooks = append(m.hooks[:i:i], m.hooks[i+1:]...)
				return
			}
		}
	}
}

// Restore asks the gateway for a session that is still valid. Only the first
// call queries the gateway; later calls return the current state.
//
// Restore always resolves: when the gateway fails or the restore timeout
// passes, the manager stays anonymous and the failure is returned as an
// *AuthError for display only. A result that arrives after another
// transition already happened is discarded.
func (m *SessionManager) Restore(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	if m.restored {
		cur := m.current.Clone()
		m.mu.Unlock()
		return cur, nil
	}
	m.restored = true
	startVersion := m.version
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.restoreTimeout)
	defer cancel()
	ctx, span := startSpan(ctx, "session.restore")

	s, err := m.gw.CurrentSession(ctx)
	endSpan(span, err)
	if err != nil {
		m.log.Warn(ctx, "session restore failed, continuing anonymous", "error", err)
		return nil, authErrorFrom(err)
	}

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	stale := m.version != startVersion
	cur := m.current.Clone()
	m.mu.Unlock()
	if stale {
		m.log.Debug(ctx, "discarding stale restore result")
		return cur, nil
	}

	if s != nil {
		m.transition(ctx, s, "restore")
		m.log.Info(ctx, "session restored", "user_id", s.UserID)
	}
	return s.Clone(), nil
}

// SignIn exchanges credentials for a session. Listeners observe the new
// session before SignIn returns. On failure the current session is kept.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, newAuthError(ErrInvalidCredentials, "email and password are required", nil)
	}

	ctx, span := startSpan(ctx, "session.sign_in")
	s, err := m.gw.SignIn(ctx, email, password)
	endSpan(span, err)
	if err != nil {
		m.log.Info(ctx, "sign in failed", "error", err)
		return nil, authErrorFrom(err)
	}

	m.notifyMu.Lock()
	m.transition(ctx, s, "sign_in")
	m.notifyMu.Unlock()

	m.log.Info(ctx, "signed in", "user_id", s.UserID)
	return s.Clone(), nil
}

// SignOut ends the session with the gateway and then locally. If the gateway
// call fails nothing changes.
func (m *SessionManager) SignOut(ctx context.Context) error {
	ctx, span := startSpan(ctx, "session.sign_out")
	err := m.gw.SignOut(ctx)
	endSpan(span, err)
	if err != nil {
		m.log.Info(ctx, "sign out failed", "error", err)
		return authErrorFrom(err)
	}

	m.notifyMu.Lock()
	m.transition(ctx, nil, "sign_out")
	m.notifyMu.Unlock()

	m.log.Info(ctx, "signed out")
	return nil
}

// Adopt makes s current. The signup wizard uses it when the gateway signs a
// new account in immediately.
func (m *SessionManager) Adopt(s *models.Session) {
	if s == nil {
		return
	}
	ctx := context.Background()
	m.notifyMu.Lock()
	m.transition(ctx, s, "signup")
	m.notifyMu.Unlock()
}

// Close stops listening to the gateway.
func (m *SessionManager) Close() {
	if m.unsubscribeGateway != nil {
		m.unsubscribeGateway()
	}
}

func (m *SessionManager) onGatewayChange(s *models.Session) {
	ctx := context.Background()
	m.notifyMu.Lock()
	changed := m.transition(ctx, s, "gateway")
	m.notifyMu.Unlock()

	if changed && s == nil {
		m.log.Warn(ctx, "session invalidated by gateway")
	}
}

// transition installs s and notifies listeners. It reports false, and
// notifies nobody, when s is the state already current.
// Caller holds notifyMu.
func (m *SessionManager) transition(ctx context.Context, s *models.Session, cause string) bool {
	m.mu.Lock()
	if models.SameSession(m.current, s) {
		m.mu.Unlock()
		return false
	}
	for _, h := range m.hooks {
		h.fn(s.Clone())
	}
	m.current = s.Clone()
	m.version++
	listeners := make([]SessionListener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l.fn)
	}
	m.mu.Unlock()

	_, span := startSpan(ctx, "session.transition", attribute.String("cause", cause), attribute.Bool("signed_in", s != nil))
	for _, fn := range listeners {
		fn(s.Clone())
	}
	span.End()
	return true
}
