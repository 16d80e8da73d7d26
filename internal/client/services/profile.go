package services

import (
	"context"
	"errors"
	"sync"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
	"go.opentelemetry.io/otel/attribute"
)

// ProfileListener observes the mirrored profile. A nil profile means the
// mirror was cleared.
type ProfileListener func(p *models.Profile)

// sessionSource is the part of SessionManager the synchronizer follows.
type sessionSource interface {
	Subscribe(fn SessionListener) (unsubscribe func())
	OnCommit(fn CommitHook) (unsubscribe func())
}

// ProfileSynchronizer mirrors the profile of the signed-in identity.
//
// The mirror only ever holds the canonical record returned by the gateway.
// Each fetch or update takes a sequence number when it starts; a result is
// applied only if it belongs to the current identity and nothing newer has
// been applied since, so a late answer for an older operation or a previous
// identity is dropped.
//
// The mirror follows the session in two steps. A commit hook swaps the
// identity and clears the mirror atomically with the session change, so a
// profile is never visible next to a session it does not belong to. The
// session listener then tells profile listeners and starts the fetch.
type ProfileSynchronizer struct {
	gw  gateway.Gateway
	log logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// notifyMu is held across a mirror change and its delivery.
	notifyMu sync.Mutex

	mu       sync.Mutex
	session  *models.Session
	profile  *models.Profile
	epoch    uint64 // bumped when the identity changes
	seq      uint64 // last sequence number handed out
	applied  uint64 // sequence number of the result in the mirror
	inflight int
	idle     chan struct{}

	// set by commit, consumed by settle
	clearPending bool
	fetchPending bool

	listeners []listenerEntry[ProfileListener]
	nextID    int

	unsubscribe func()
}

func NewProfileSynchronizer(gw gateway.Gateway, sessions sessionSource, log logging.Logger) *ProfileSynchronizer {
	if log == nil {
		log = logging.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	p := &ProfileSynchronizer{
		gw:     gw,
		log:    logging.Component(log, "profile_sync"),
		ctx:    ctx,
		cancel: cancel,
		idle:   idle,
	}
	unsubscribe := sessions.Subscribe(p.onSession)
	unsubscribeCommit := sessions.OnCommit(p.commit)
	p.unsubscribe = func() {
		unsubscribeCommit()
		unsubscribe()
	}
	p.settle()
	return p
}

// Profile returns a copy of the mirrored profile, or nil.
func (p *ProfileSynchronizer) Profile() *models.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile.Clone()
}

// Subscribe registers fn for later mirror changes.
func (p *ProfileSynchronizer) Subscribe(fn ProfileListener) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners = append(p.listeners, listenerEntry[ProfileListener]{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, l := range p.listeners {
			if l.id == id {
				p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// WaitIdle blocks until no fetch or update is in flight.
func (p *ProfileSynchronizer) WaitIdle(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Update sends patch for the signed-in identity and mirrors the record the
// gateway returns. On failure the mirror is left as it was.
func (p *ProfileSynchronizer) Update(ctx context.Context, patch models.ProfilePatch) (*models.Profile, error) {
	if p.signedOut() {
		return nil, newProfileError(ErrNoSession, "", nil)
	}
	if err := patch.ValidateUpdate(); err != nil {
		return nil, newProfileError(ErrInvalidPatch, err.Error(), err)
	}

	s, epoch, seq := p.begin()
	if s == nil {
		return nil, newProfileError(ErrNoSession, "", nil)
	}
	defer p.end()

	ctx, span := startSpan(ctx, "profile.update", attribute.String("user_id", s.UserID))
	prof, err := p.gw.UpsertProfile(ctx, s.UserID, patch)
	endSpan(span, err)
	if err != nil {
		p.log.Warn(ctx, "profile update rejected", "user_id", s.UserID, "error", err)
		return nil, newProfileError(ErrRemoteRejected, gateway.Message(err), err)
	}

	if !p.apply(ctx, epoch, seq, s.UserID, prof) {
		return nil, newProfileError(ErrSuperseded, "", nil)
	}
	return prof.Clone(), nil
}

// Refresh fetches the profile of the signed-in identity again, repairing it
// when it is missing.
func (p *ProfileSynchronizer) Refresh(ctx context.Context) (*models.Profile, error) {
	s, epoch, seq := p.begin()
	if s == nil {
		return nil, newProfileError(ErrNoSession, "", nil)
	}
	defer p.end()

	prof, err := p.load(ctx, s, epoch)
	if err != nil {
		return nil, newProfileError(ErrRemoteRejected, gateway.Message(err), err)
	}
	if !p.apply(ctx, epoch, seq, s.UserID, prof) {
		return nil, newProfileError(ErrSuperseded, "", nil)
	}
	return prof.Clone(), nil
}

// Close stops following the session and waits for in-flight operations.
func (p *ProfileSynchronizer) Close(ctx context.Context) error {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.cancel()
	return p.WaitIdle(ctx)
}

// commit runs under the session manager's lock as s becomes current.
func (p *ProfileSynchronizer) commit(s *models.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.session
	p.session = s.Clone()
	if prev == nil && s == nil {
		return
	}
	if s != nil && prev != nil && prev.UserID == s.UserID {
		// same identity with a refreshed token
		return
	}

	p.epoch++
	if p.profile != nil {
		p.profile = nil
		p.clearPending = true
	}
	p.fetchPending = s != nil
}

// onSession runs inside the session manager's notification, after commit.
func (p *ProfileSynchronizer) onSession(*models.Session) {
	p.settle()
}

// settle delivers what commit left pending: the cleared mirror to listeners
// and a background fetch for a new identity.
func (p *ProfileSynchronizer) settle() {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	cleared, fetch := p.clearPending, p.fetchPending
	p.clearPending, p.fetchPending = false, false
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	if cleared {
		for _, fn := range listeners {
			fn(nil)
		}
	}
	if !fetch {
		return
	}
	if cur, epoch, seq := p.begin(); cur != nil {
		go p.fetch(cur, epoch, seq)
	}
}

func (p *ProfileSynchronizer) fetch(s *models.Session, epoch, seq uint64) {
	defer p.end()

	prof, err := p.load(p.ctx, s, epoch)
	if err != nil {
		p.log.Warn(p.ctx, "profile fetch failed", "user_id", s.UserID, "error", err)
		return
	}
	p.apply(p.ctx, epoch, seq, s.UserID, prof)
}

// load fetches the profile of s. A profile that does not exist is created
// from the signup metadata stored with the identity, unless the identity
// stopped being current meanwhile.
func (p *ProfileSynchronizer) load(ctx context.Context, s *models.Session, epoch uint64) (*models.Profile, error) {
	ctx, span := startSpan(ctx, "profile.fetch", attribute.String("user_id", s.UserID))
	prof, err := p.gw.GetProfile(ctx, s.UserID)
	if errors.Is(err, gateway.ErrNotFound) && p.isCurrent(epoch) {
		p.log.Info(ctx, "profile missing, creating it from signup data", "user_id", s.UserID)
		span.AddEvent("repair")
		prof, err = p.gw.UpsertProfile(ctx, s.UserID, s.Metadata.Seed(s.Email))
	}
	endSpan(span, err)
	return prof, err
}

// begin hands out a sequence number for an operation on the current
// identity and marks it in flight. It returns a nil session, and starts
// nothing, when signed out.
func (p *ProfileSynchronizer) begin() (s *models.Session, epoch, seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil, 0, 0
	}
	if p.inflight == 0 {
		p.idle = make(chan struct{})
	}
	p.inflight++
	p.seq++
	return p.session.Clone(), p.epoch, p.seq
}

func (p *ProfileSynchronizer) isCurrent(epoch uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil && p.epoch == epoch
}

func (p *ProfileSynchronizer) signedOut() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session == nil
}

func (p *ProfileSynchronizer) end() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight--
	if p.inflight == 0 {
		close(p.idle)
	}
}

// apply mirrors prof if the operation (epoch, seq) is still the newest for
// the current identity.
func (p *ProfileSynchronizer) apply(ctx context.Context, epoch, seq uint64, userID string, prof *models.Profile) bool {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	current := p.session != nil && p.session.UserID == userID && p.epoch == epoch
	if !current || seq < p.applied || prof == nil || prof.UserID != userID {
		p.mu.Unlock()
		p.log.Debug(ctx, "discarding stale profile result", "user_id", userID, "seq", seq)
		return false
	}
	p.applied = seq
	p.profile = prof.Clone()
	listeners := p.snapshotListeners()
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(prof.Clone())
	}
	return true
}

// Caller holds p.mu.
func (p *ProfileSynchronizer) snapshotListeners() []ProfileListener {
	out := make([]ProfileListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		out = append(out, l.fn)
	}
	return out
}
