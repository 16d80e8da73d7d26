package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
)

// ExpiryDelta makes tokens count as expired slightly before they run out.
const ExpiryDelta = 10 * time.Second

// RefreshFunc exchanges old for a new handle and the session it proves.
type RefreshFunc func(ctx context.Context, old models.TokenHandle) (models.TokenHandle, *models.Session, error)

// Tokens keeps the token handle and session of a remote gateway. The saved
// handle is loaded from the store on first use; changes are saved back.
// Refreshes and invalidations are pushed to session listeners, the client's
// own sign-in and sign-out are not.
type Tokens struct {
	store TokenStore
	log   logging.Logger
	now   func() time.Time

	refreshMu sync.Mutex

	// changeMu is held across a handle change, its saving and its delivery.
	changeMu sync.Mutex

	mu        sync.Mutex
	handle    *models.TokenHandle
	current   *models.Session
	loaded    bool
	gen       uint64 // bumped by every Set, Forget and Invalidate
	listeners map[int]SessionListener
	nextID    int
}

// NewTokens accepts a nil store (nothing persisted), logger and clock.
func NewTokens(store TokenStore, log logging.Logger, now func() time.Time) *Tokens {
	if log == nil {
		log = logging.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{store: store, log: log, now: now, listeners: make(map[int]SessionListener)}
}

func (t *Tokens) Subscribe(fn SessionListener) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// Caller holds t.mu.
func (t *Tokens) snapshotListeners() []SessionListener {
	out := make([]SessionListener, 0, len(t.listeners))
	for _, fn := range t.listeners {
		out = append(out, fn)
	}
	return out
}

// Expired reports whether h needs a refresh now.
func (t *Tokens) Expired(h models.TokenHandle) bool {
	return h.Expired(t.now().Add(ExpiryDelta))
}

// Handle returns the current handle, loading the saved one on first use. It
// returns nil when signed out.
func (t *Tokens) Handle(ctx context.Context) *models.TokenHandle {
	t.mu.Lock()
	if t.loaded {
		h := cloneHandle(t.handle)
		t.mu.Unlock()
		return h
	}
	t.mu.Unlock()

	var saved *models.TokenHandle
	if t.store != nil {
		h, err := t.store.Load(ctx)
		if err != nil {
			t.log.Warn(ctx, "saved session not readable", "error", err)
		} else {
			saved = h
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.loaded {
		t.handle, t.loaded = saved, true
	}
	return cloneHandle(t.handle)
}

func cloneHandle(h *models.TokenHandle) *models.TokenHandle {
	if h == nil {
		return nil
	}
	c := *h
	return &c
}

// Current is the last session built from the current handle.
func (t *Tokens) Current() *models.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current.Clone()
}

// SetCurrent records s as the session of the current handle.
func (t *Tokens) SetCurrent(s *models.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = s.Clone()
}

// Valid returns a usable handle, refreshing an expired one, or nil when
// signed out.
func (t *Tokens) Valid(ctx context.Context, refresh RefreshFunc) (*models.TokenHandle, error) {
	h := t.Handle(ctx)
	if h == nil || !t.Expired(*h) {
		return h, nil
	}
	return t.Refresh(ctx, *h, refresh)
}

// Refresh replaces old through refresh. When another caller already replaced
// old its result is returned instead. A refusal drops the session, pushes nil
// and returns ErrUnauthorized. So does a sign-in or sign-out that happens
// while the refresh is on the wire; its result is then dropped.
func (t *Tokens) Refresh(ctx context.Context, old models.TokenHandle, refresh RefreshFunc) (*models.TokenHandle, error) {
	t.refreshMu.Lock()
	defer t.refreshMu.Unlock()

	t.mu.Lock()
	cur := cloneHandle(t.handle)
	gen := t.gen
	t.mu.Unlock()
	if cur == nil {
		return nil, NewError(ErrUnauthorized, "not signed in")
	}
	if cur.AccessToken != old.AccessToken && !t.Expired(*cur) {
		return cur, nil
	}
	if old.RefreshToken == "" {
		t.Invalidate(ctx)
		return nil, NewError(ErrUnauthorized, "session expired")
	}

	h, s, err := refresh(ctx, old)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRejected) {
			t.log.Info(ctx, "token refresh refused, dropping session", "error", err)
			t.invalidateIf(ctx, &gen)
			return nil, WrapError(ErrUnauthorized, Message(err), err)
		}
		return nil, err
	}
	if !t.set(ctx, h, s, true, &gen) {
		t.log.Info(ctx, "session changed during token refresh, dropping result")
		return nil, NewError(ErrUnauthorized, "session changed during refresh")
	}
	t.log.Debug(ctx, "token refreshed", "user_id", s.UserID)
	return &h, nil
}

// Set makes h and s current and saves h. With push set, listeners receive s.
func (t *Tokens) Set(ctx context.Context, h models.TokenHandle, s *models.Session, push bool) {
	t.set(ctx, h, s, push, nil)
}

// set installs h unless gen is given and no longer current.
func (t *Tokens) set(ctx context.Context, h models.TokenHandle, s *models.Session, push bool, gen *uint64) bool {
	t.changeMu.Lock()
	defer t.changeMu.Unlock()

	t.mu.Lock()
	if gen != nil && *gen != t.gen {
		t.mu.Unlock()
		return false
	}
	t.gen++
	t.handle, t.current, t.loaded = &h, s.Clone(), true
	var listeners []SessionListener
	if push {
		listeners = t.snapshotListeners()
	}
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Save(ctx, h); err != nil {
			t.log.Warn(ctx, "session not saved", "error", err)
		}
	}
	for _, fn := range listeners {
		fn(s.Clone())
	}
	return true
}

// Forget drops the session without telling listeners.
func (t *Tokens) Forget(ctx context.Context) {
	t.changeMu.Lock()
	defer t.changeMu.Unlock()

	t.mu.Lock()
	t.gen++
	t.handle, t.current, t.loaded = nil, nil, true
	t.mu.Unlock()
	t.clearStore(ctx)
}

// Invalidate drops the session and pushes nil to listeners if there was one.
func (t *Tokens) Invalidate(ctx context.Context) {
	t.invalidateIf(ctx, nil)
}

// invalidateIf is Invalidate, skipped when gen is given and no longer current.
func (t *Tokens) invalidateIf(ctx context.Context, gen *uint64) {
	t.changeMu.Lock()
	defer t.changeMu.Unlock()

	t.mu.Lock()
	if gen != nil && *gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.gen++
	had := t.handle != nil || t.current != nil
	t.handle, t.current, t.loaded = nil, nil, true
	listeners := t.snapshotListeners()
	t.mu.Unlock()

	t.clearStore(ctx)
	if !had {
		return
	}
	for _, fn := range listeners {
		fn(nil)
	}
}

func (t *Tokens) clearStore(ctx context.Context) {
	if t.store == nil {
		return
	}
	if err := t.store.Clear(ctx); err != nil {
		t.log.Warn(ctx, "saved session not cleared", "error", err)
	}
}
