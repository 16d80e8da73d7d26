package services

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/logging"
	"go.opentelemetry.io/otel/attribute"
)

// MinPasswordLength is the shortest password the wizard accepts, in runes.
const MinPasswordLength = 6

// WizardStep is a state of the signup wizard.
type WizardStep int

const (
	StepCollectingCredentials WizardStep = iota
	StepCollectingProfile
	StepSubmitting
	StepComplete
	StepFailed
)

func (s WizardStep) String() string {
	switch s {
	case StepCollectingCredentials:
		return "collecting_credentials"
	case StepCollectingProfile:
		return "collecting_profile"
	case StepSubmitting:
		return "submitting"
	case StepComplete:
		return "complete"
	case StepFailed:
		return "failed"
	}
	return "unknown"
}

// WizardEvent is delivered to wizard listeners on every step change. Err is
// set for StepFailed.
type WizardEvent struct {
	Step WizardStep
	Err  error
}

type WizardListener func(WizardEvent)

// SignupDraft is the read-only view of the form. It never exposes the
// password.
type SignupDraft struct {
	Step           WizardStep
	DisplayName    string
	Email          string
	HasPassword    bool
	TargetBand     models.BandScore
	PrepDuration   models.PrepDuration
	ReferralSource models.ReferralSource
	Goals          models.GoalSet
}

// sessionAdopter receives the session of a freshly created account.
type sessionAdopter interface {
	Adopt(s *models.Session)
}

type draft struct {
	displayName    string
	email          string
	password       []byte
	targetBand     models.BandScore
	prepDuration   models.PrepDuration
	referralSource models.ReferralSource
	goals          models.GoalSet
}

func newDraft() draft {
	return draft{targetBand: models.DefaultBandScore, goals: models.GoalSet{}}
}

// wipe zeroes the password bytes and resets every field.
func (d *draft) wipe() {
	for i := range d.password {
		d.password[i] = 0
	}
	*d = draft{}
}

// SignupWizard collects credentials, then enrollment data, and submits both
// as one account-creation request.
//
//	CollectingCredentials -> CollectingProfile -> Submitting -> Complete
//	                                 ^                |
//	                                 +---- Failed <---+
//
// The draft lives only in memory and is wiped when the wizard completes or
// is abandoned.
type SignupWizard struct {
	gw       gateway.Gateway
	sessions sessionAdopter
	log      logging.Logger

	notifyMu sync.Mutex

	mu        sync.Mutex
	step      WizardStep
	draft     draft
	lastErr   error
	listeners []listenerEntry[WizardListener]
	nextID    int
}

func NewSignupWizard(gw gateway.Gateway, sessions sessionAdopter, log logging.Logger) *SignupWizard {
	if log == nil {
		log = logging.Nop{}
	}
	return &SignupWizard{
		gw:       gw,
		sessions: sessions,
		log:      logging.Component(log, "signup_wizard"),
		step:     StepCollectingCredentials,
		draft:    newDraft(),
	}
}

func (w *SignupWizard) Step() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// LastError returns the most recent submission failure, cleared by the next
// successful step change.
func (w *SignupWizard) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *SignupWizard) Draft() SignupDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return SignupDraft{
		Step:           w.step,
		DisplayName:    w.draft.displayName,
		Email:          w.draft.email,
		HasPassword:    len(w.draft.password) > 0,
		TargetBand:     w.draft.targetBand,
		PrepDuration:   w.draft.prepDuration,
		ReferralSource: w.draft.referralSource,
		Goals:          w.draft.goals.Clone(),
	}
}

func (w *SignupWizard) Subscribe(fn WizardListener) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.listeners = append(w.listeners, listenerEntry[WizardListener]{id: id, fn: fn})

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, l := range w.listeners {
			if l.id == id {
				w.listeners = append(w.listeners[:i:i], w.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetCredentials fills the first step's fields. Nothing is validated until
// SubmitCredentials.
func (w *SignupWizard) SetCredentials(displayName, email, password string) error {
	return w.edit(StepCollectingCredentials, func(d *draft) error {
		d.displayName = displayName
		d.email = email
		for i := range d.password {
			d.password[i] = 0
		}
		d.password = []byte(password)
		return nil
	})
}

// SubmitCredentials validates the first step and advances to
// CollectingProfile. On a validation failure the step does not change.
func (w *SignupWizard) SubmitCredentials() error {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	w.mu.Lock()
	if err := w.checkStep(StepCollectingCredentials); err != nil {
		w.mu.Unlock()
		return err
	}
	if err := validateCredentials(&w.draft); err != nil {
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()

	w.setStep(StepCollectingProfile, nil)
	return nil
}

func validateCredentials(d *draft) error {
	if strings.TrimSpace(d.displayName) == "" || strings.TrimSpace(d.email) == "" || len(d.password) == 0 {
		return newSignupError(ErrMissingFields, "", nil)
	}
	if utf8.RuneCount(d.password) < MinPasswordLength {
		return newSignupError(ErrPasswordTooShort, "", nil)
	}
	return nil
}

// ToggleGoal adds g to the goals, or removes it when already present.
func (w *SignupWizard) ToggleGoal(g models.Goal) error {
	if !g.Valid() {
		return newSignupError(ErrInvalidChoice, "unknown goal "+string(g), models.ErrInvalidGoal)
	}
	return w.edit(StepCollectingProfile, func(d *draft) error {
		d.goals.Toggle(g)
		return nil
	})
}

func (w *SignupWizard) SelectBand(b models.BandScore) error {
	if !b.Valid() {
		return newSignupError(ErrInvalidChoice, "unknown band "+b.String(), models.ErrInvalidBandScore)
	}
	return w.edit(StepCollectingProfile, func(d *draft) error {
		d.targetBand = b
		return nil
	})
}

// SelectPrepDuration sets the preparation time; PrepDurationUnset clears it.
func (w *SignupWizard) SelectPrepDuration(p models.PrepDuration) error {
	if !p.Valid() {
		return newSignupError(ErrInvalidChoice, "unknown preparation time "+string(p), models.ErrInvalidPrepDuration)
	}
	return w.edit(StepCollectingProfile, func(d *draft) error {
		d.prepDuration = p
		return nil
	})
}

// SelectReferral sets the referral source; ReferralUnset clears it.
func (w *SignupWizard) SelectReferral(r models.ReferralSource) error {
	if !r.Valid() {
		return newSignupError(ErrInvalidChoice, "unknown referral source "+string(r), models.ErrInvalidReferralSource)
	}
	return w.edit(StepCollectingProfile, func(d *draft) error {
		d.referralSource = r
		return nil
	})
}

// Back returns to the credentials step keeping everything entered so far.
func (w *SignupWizard) Back() error {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	w.mu.Lock()
	err := w.checkStep(StepCollectingProfile)
	w.mu.Unlock()
	if err != nil {
		return err
	}

	w.setStep(StepCollectingCredentials, nil)
	return nil
}

// Abandon wipes the draft and starts over.
func (w *SignupWizard) Abandon() error {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	w.mu.Lock()
	switch w.step {
	case StepSubmitting:
		w.mu.Unlock()
		return newSignupError(ErrWizardBusy, "", nil)
	case StepComplete:
		w.mu.Unlock()
		return newSignupError(ErrWizardComplete, "", nil)
	}
	w.draft.wipe()
	w.draft = newDraft()
	w.mu.Unlock()

	w.setStep(StepCollectingCredentials, nil)
	return nil
}

// Submit sends the account-creation request. On success the wizard is
// Complete, the draft is wiped and the new session, if the gateway issued
// one, becomes current. On failure the wizard passes through Failed back to
// CollectingProfile with every field intact.
//
// Creating the profile is a second write. If it cannot be confirmed the
// account still exists and the profile synchronizer creates the profile from
// the signup metadata on the identity's first fetch.
func (w *SignupWizard) Submit(ctx context.Context) (*models.SignUpResult, error) {
	w.notifyMu.Lock()
	w.mu.Lock()
	if err := w.checkStep(StepCollectingProfile); err != nil {
		w.mu.Unlock()
		w.notifyMu.Unlock()
		return nil, err
	}
	// credentials may have been edited through Back
	if err := validateCredentials(&w.draft); err != nil {
		w.mu.Unlock()
		w.notifyMu.Unlock()
		return nil, err
	}
	email := strings.TrimSpace(w.draft.email)
	password := string(w.draft.password)
	meta := models.SignupMetadata{
		DisplayName:    strings.TrimSpace(w.draft.displayName),
		TargetBand:     w.draft.targetBand,
		PrepDuration:   w.draft.prepDuration,
		ReferralSource: w.draft.referralSource,
		Goals:          w.draft.goals.Clone(),
	}
	w.mu.Unlock()
	w.setStep(StepSubmitting, nil)
	w.notifyMu.Unlock()

	ctx, span := startSpan(ctx, "signup.submit")
	res, err := w.gw.SignUp(ctx, email, password, meta)
	endSpan(span, err)

	if err != nil {
		w.log.Info(ctx, "signup rejected", "error", err)
		serr := newSignupError(ErrSubmission, gateway.Message(err), err)

		w.notifyMu.Lock()
		w.setStep(StepFailed, serr)
		w.setStep(StepCollectingProfile, serr)
		w.notifyMu.Unlock()
		return nil, serr
	}

	w.seedProfile(ctx, res, meta)
	if res.Session != nil && w.sessions != nil {
		w.sessions.Adopt(res.Session)
	}

	w.notifyMu.Lock()
	w.mu.Lock()
	w.draft.wipe()
	w.mu.Unlock()
	w.setStep(StepComplete, nil)
	w.notifyMu.Unlock()

	w.log.Info(ctx, "account created", "user_id", res.UserID, "signed_in", res.Session != nil)
	return res, nil
}

// seedProfile writes the initial profile. It needs the new identity to be
// signed in; without a session the profile is left to lazy repair.
func (w *SignupWizard) seedProfile(ctx context.Context, res *models.SignUpResult, meta models.SignupMetadata) {
	if res.Session == nil {
		w.log.Info(ctx, "no session after signup, profile will be created on first sign in", "user_id", res.UserID)
		return
	}

	ctx, span := startSpan(ctx, "signup.seed_profile", attribute.String("user_id", res.UserID))
	_, err := w.gw.UpsertProfile(ctx, res.UserID, meta.Seed(res.Session.Email))
	endSpan(span, err)
	if err != nil {
		w.log.Warn(ctx, "profile seed failed, will be repaired on fetch", "user_id", res.UserID, "error", err)
	}
}

// edit applies fn to the draft if the wizard is in step want.
func (w *SignupWizard) edit(want WizardStep, fn func(d *draft) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkStep(want); err != nil {
		return err
	}
	return fn(&w.draft)
}

// Caller holds w.mu.
func (w *SignupWizard) checkStep(want WizardStep) error {
	switch {
	case w.step == want:
		return nil
	case w.step == StepSubmitting:
		return newSignupError(ErrWizardBusy, "", nil)
	case w.step == StepComplete:
		return newSignupError(ErrWizardComplete, "", nil)
	}
	return newSignupError(ErrWrongStep, "not available while "+w.step.String(), nil)
}

// setStep changes the step and notifies listeners. Caller holds notifyMu.
func (w *SignupWizard) setStep(step WizardStep, err error) {
	w.mu.Lock()
	w.step = step
	w.lastErr = err
	listeners := make([]WizardListener, 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l.fn)
	}
	w.mu.Unlock()

	ev := WizardEvent{Step: step, Err: err}
	for _, fn := range listeners {
		fn(ev)
	}
}
