package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/services"
)

// ShowProfile prints the profile mirror. When nothing is mirrored yet the
// profile is fetched first.
func (a *App) ShowProfile(ctx context.Context) error {
	if !a.isSignedIn() {
		return services.ErrNoSession
	}

	p := a.core.Profiles.Profile()
	if p == nil {
		ctx, cancel := a.withTimeout(ctx)
		defer cancel()

		var err error
		if p, err = a.core.Profiles.Refresh(ctx); err != nil {
			return err
		}
	}

	a.printProfile(p)
	return nil
}

func (a *App) printProfile(p *models.Profile) {
	a.printf("Name:            %s\n", p.DisplayName)
	a.printf("Email:           %s\n", p.Email)
	a.printf("Target band:     %s\n", p.TargetBand)
	if p.AvatarIndex == models.NoAvatar {
		a.printf("Avatar:          none\n")
	} else {
		a.printf("Avatar:          #%d\n", p.AvatarIndex)
	}
	a.printf("Preparation:     %s\n", orNone(string(p.PrepDuration)))
	a.printf("Referral:        %s\n", orNone(string(p.ReferralSource)))
	a.printf("Goals:           %s\n", orNone(joinGoals(p.Goals)))
}

// UpdateProfile applies field=value pairs to the profile. Without arguments
// the pairs are read interactively.
func (a *App) UpdateProfile(ctx context.Context, args []string) error {
	if !a.isSignedIn() {
		return services.ErrNoSession
	}

	if len(args) == 0 {
		fields, err := GetFields(a.reader, "Fields: display_name, target_band, avatar_index, prep_duration, referral_source, goals", a.out)
		if err != nil {
			return err
		}
		args = fields
	}

	patch, err := parsePatch(args)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	p, err := a.core.Profiles.Update(ctx, patch)
	if err != nil {
		return err
	}
	a.println("Profile updated")
	a.printProfile(p)
	return nil
}

// parsePatch turns field=value pairs into a validated patch. "-" clears an
// optional choice; goals take a comma separated list that replaces the set.
func parsePatch(pairs []string) (models.ProfilePatch, error) {
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return models.ProfilePatch{}, fmt.Errorf("expected field=value, got %q", pair)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "target_band":
			b, err := models.ParseBandScore(value)
			if err != nil {
				return models.ProfilePatch{}, err
			}
			fields[key] = b
		case "avatar_index":
			n, err := strconv.Atoi(value)
			if err != nil {
				return models.ProfilePatch{}, fmt.Errorf("avatar_index: %w", err)
			}
			fields[key] = n
		case "goals":
			goals := splitList(value)
			if goals == nil {
				goals = []string{}
			}
			fields[key] = goals
		default:
			fields[key] = unsetDash(value)
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return models.ProfilePatch{}, err
	}
	return models.DecodeProfilePatch(data)
}
