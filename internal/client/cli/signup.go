package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/services"
)

// SignUp walks the user through the signup wizard. Validation failures are
// shown and the step is asked again; a failed submission returns to the
// profile step with everything kept.
func (a *App) SignUp(ctx context.Context) error {
	if s := a.core.Sessions.Current(); s != nil {
		return fmt.Errorf("already signed in as %s", s.Email)
	}

	w := a.core.NewSignupWizard()
	unsubscribe := w.Subscribe(func(ev services.WizardEvent) {
		if ev.Step == services.StepSubmitting {
			a.println("Creating your account...")
		}
	})
	defer unsubscribe()

	for {
		var err error
		switch w.Step() {
		case services.StepCollectingCredentials:
			err = a.collectCredentials(w)
		case services.StepCollectingProfile:
			err = a.collectProfile(ctx, w)
		case services.StepComplete:
			a.println("Welcome aboard!")
			if s := a.core.Sessions.Current(); s != nil {
				a.println("Signed in as", s.Email)
			} else {
				a.println("Confirm your e-mail address, then sign in.")
			}
			return nil
		default:
			err = fmt.Errorf("unexpected wizard step %s", w.Step())
		}

		if errors.Is(err, errCancelled) {
			_ = w.Abandon()
			a.println("Sign up cancelled")
			return nil
		}
		if err != nil {
			_ = w.Abandon()
			return err
		}
	}
}

var errCancelled = errors.New("cancelled")

func (a *App) collectCredentials(w *services.SignupWizard) error {
	name, err := getSimpleText(a.reader, "Display name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	defer clear(password)

	if err := w.SetCredentials(name, email, string(password)); err != nil {
		return err
	}

	err = w.SubmitCredentials()
	var se *services.SignupError
	if errors.As(err, &se) && se.Validation() {
		a.println("Error:", describeSignupError(err))
		again, err := getSimpleText(a.reader, "Try again? [Y/n]", a.out)
		if err != nil {
			return err
		}
		if no(again) {
			return errCancelled
		}
		return nil
	}
	return err
}

func (a *App) collectProfile(ctx context.Context, w *services.SignupWizard) error {
	d := w.Draft()

	band, err := getSimpleText(a.reader, fmt.Sprintf("Target band score %s [%s]", choices(models.BandScores), d.TargetBand), a.out)
	if err != nil {
		return err
	}
	if band != "" {
		a.report(selectBand(w, band))
	}

	prep, err := getSimpleText(a.reader, fmt.Sprintf("Preparation time %s [%s]", choices(models.PrepDurations), orNone(string(d.PrepDuration))), a.out)
	if err != nil {
		return err
	}
	if prep != "" {
		a.report(w.SelectPrepDuration(models.PrepDuration(unsetDash(prep))))
	}

	ref, err := getSimpleText(a.reader, fmt.Sprintf("How did you hear about us? %s [%s]", choices(models.ReferralSources), orNone(string(d.ReferralSource))), a.out)
	if err != nil {
		return err
	}
	if ref != "" {
		a.report(w.SelectReferral(models.ReferralSource(unsetDash(ref))))
	}

	goals, err := getSimpleText(a.reader, fmt.Sprintf("Goals to toggle, comma separated %s [%s]", choices(models.Goals), orNone(joinGoals(w.Draft().Goals))), a.out)
	if err != nil {
		return err
	}
	for _, g := range splitList(goals) {
		a.report(w.ToggleGoal(models.Goal(g)))
	}

	for {
		action, err := getSimpleText(a.reader, "(s)ubmit, (e)dit, (b)ack or (c)ancel?", a.out)
		if err != nil {
			return err
		}
		switch strings.ToLower(action) {
		case "s", "submit":
			submitCtx, cancel := a.withTimeout(ctx)
			_, err := w.Submit(submitCtx)
			cancel()
			if err != nil {
				a.println("Error:", describeSignupError(err))
			}
			return nil
		case "e", "edit":
			return nil
		case "b", "back":
			return w.Back()
		case "c", "cancel":
			return errCancelled
		}
	}
}

func selectBand(w *services.SignupWizard, s string) error {
	b, err := models.ParseBandScore(s)
	if err != nil {
		return err
	}
	return w.SelectBand(b)
}

func (a *App) report(err error) {
	if err != nil {
		a.println("Error:", describeSignupError(err))
	}
}

// describeSignupError turns a wizard failure into the line shown to the
// user.
func describeSignupError(err error) string {
	switch {
	case errors.Is(err, services.ErrMissingFields):
		return "please fill in name, email and password"
	case errors.Is(err, services.ErrPasswordTooShort):
		return fmt.Sprintf("password must have at least %d characters", services.MinPasswordLength)
	default:
		return err.Error()
	}
}

func choices[T any](values []T) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func joinGoals(s models.GoalSet) string {
	parts := make([]string, 0, len(s))
	for _, g := range s.Slice() {
		parts = append(parts, string(g))
	}
	return strings.Join(parts, ",")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// unsetDash maps "-" to the empty value, which clears an optional choice.
func unsetDash(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func no(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "n" || s == "no"
}
