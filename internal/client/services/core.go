package services

import (
	"context"
	"errors"
	"time"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
)

// Core is the client's session, profile and progress state. Build one at
// startup with NewCore, call Start, and Close it on exit.
type Core struct {
	Sessions *SessionManager
	Profiles *ProfileSynchronizer
	Progress *ProgressAggregator

	gw  gateway.Gateway
	log logging.Logger
}

type coreOptions struct {
	restoreTimeout time.Duration
	totals         map[models.SkillCategory]int
}

type Option func(*coreOptions)

func WithRestoreTimeout(d time.Duration) Option {
	return func(o *coreOptions) { o.restoreTimeout = d }
}

func WithSkillTotals(totals map[models.SkillCategory]int) Option {
	return func(o *coreOptions) { o.totals = totals }
}

func NewCore(gw gateway.Gateway, cache ProgressReader, log logging.Logger, opts ...Option) *Core {
	if log == nil {
		log = logging.Nop{}
	}
	o := coreOptions{restoreTimeout: DefaultRestoreTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	sessions := NewSessionManager(gw, log, o.restoreTimeout)
	return &Core{
		Sessions: sessions,
		Profiles: NewProfileSynchronizer(gw, sessions, log),
		Progress: NewProgressAggregator(cache, o.totals),
		gw:       gw,
		log:      log,
	}
}

// Start restores a persisted session. Restore failures are not fatal; the
// core stays anonymous and the error is returned for display.
func (c *Core) Start(ctx context.Context) (*models.Session, error) {
	return c.Sessions.Restore(ctx)
}

// NewSignupWizard starts a fresh signup flow bound to this core.
func (c *Core) NewSignupWizard() *SignupWizard {
	return NewSignupWizard(c.gw, c.Sessions, c.log)
}

// Ping checks that the gateway is reachable.
func (c *Core) Ping(ctx context.Context) error {
	return c.gw.Ping(ctx)
}

// Close waits for in-flight profile operations and releases the gateway.
func (c *Core) Close(ctx context.Context) error {
	err := c.Profiles.Close(ctx)
	c.Sessions.Close()
	return errors.Join(err, c.gw.Close())
}
