package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/services"
)

// getSimpleText and getPassword are swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

// SignIn prompts for credentials and signs in. The password bytes are wiped
// before returning.
func (a *App) SignIn(ctx context.Context) error {
	if s := a.core.Sessions.Current(); s != nil {
		return fmt.Errorf("already signed in as %s", s.Email)
	}

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	defer clear(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	s, err := a.core.Sessions.SignIn(ctx, email, string(password))
	if err != nil {
		if errors.Is(err, services.ErrNetwork) {
			a.setMode(ModeOffline)
		}
		return err
	}

	a.setMode(ModeOnline)
	a.println("Signed in as", s.Email)
	return nil
}

// SignOut ends the session. The profile mirror is cleared by the
// synchronizer as soon as the session is gone.
func (a *App) SignOut(ctx context.Context) error {
	if !a.isSignedIn() {
		return services.ErrNoSession
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.core.Sessions.SignOut(ctx); err != nil {
		return err
	}
	a.println("Signed out")
	return nil
}

// Status prints the session, the connectivity mode and the profile mirror
// state.
func (a *App) Status(ctx context.Context) error {
	mode := a.Mode()
	if mode == "" {
		mode = "unknown"
	}
	a.println("Connectivity:", mode)

	s := a.core.Sessions.Current()
	if s == nil {
		a.println("Not signed in")
		return nil
	}
	a.printf("Signed in as %s (user %s)\n", s.Email, s.UserID)
	if a.core.Profiles.Profile() == nil {
		a.println("Profile: not loaded yet")
	} else {
		a.println("Profile: loaded")
	}
	return nil
}
