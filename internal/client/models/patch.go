package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmptyPatch       = errors.New("profile patch has no fields")
	ErrEmptyDisplayName = errors.New("display name must not be empty")
	ErrEmptyEmail       = errors.New("email must not be empty")
	ErrEmailReadOnly    = errors.New("email cannot be changed")
)

// ProfilePatch is a partial profile update. A nil field is left untouched;
// a non-nil field replaces the stored value. Email is only ever set by the
// seed that creates a profile.
type ProfilePatch struct {
	Email          *string         `json:"email,omitempty"`
	DisplayName    *string         `json:"display_name,omitempty"`
	TargetBand     *BandScore      `json:"target_band,omitempty"`
	AvatarIndex    *int            `json:"avatar_index,omitempty"`
	PrepDuration   *PrepDuration   `json:"prep_duration,omitempty"`
	ReferralSource *ReferralSource `json:"referral_source,omitempty"`
	Goals          *GoalSet        `json:"goals,omitempty"`
}

// DecodeProfilePatch parses a JSON object into a user update. Unknown fields,
// trailing data and email are rejected; the result is validated.
func DecodeProfilePatch(data []byte) (ProfilePatch, error) {
	var p ProfilePatch
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return ProfilePatch{}, fmt.Errorf("decode profile patch: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return ProfilePatch{}, errors.New("decode profile patch: trailing data")
	}
	if err := p.ValidateUpdate(); err != nil {
		return ProfilePatch{}, err
	}
	return p, nil
}

// IsEmpty reports whether no field is set.
func (p ProfilePatch) IsEmpty() bool {
	return p.Email == nil && p.DisplayName == nil && p.TargetBand == nil && p.AvatarIndex == nil &&
		p.PrepDuration == nil && p.ReferralSource == nil && p.Goals == nil
}

// Validate checks every set field against its allowed values.
func (p ProfilePatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Email != nil && strings.TrimSpace(*p.Email) == "" {
		return ErrEmptyEmail
	}
	if p.DisplayName != nil && strings.TrimSpace(*p.DisplayName) == "" {
		return ErrEmptyDisplayName
	}
	if p.TargetBand != nil && !p.TargetBand.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidBandScore, p.TargetBand)
	}
	if p.AvatarIndex != nil && *p.AvatarIndex < NoAvatar {
		return fmt.Errorf("%w: %d", ErrInvalidAvatarIndex, *p.AvatarIndex)
	}
	if p.PrepDuration != nil && !p.PrepDuration.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPrepDuration, *p.PrepDuration)
	}
	if p.ReferralSource != nil && !p.ReferralSource.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidReferralSource, *p.ReferralSource)
	}
	if p.Goals != nil {
		if err := p.Goals.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUpdate is Validate for a patch sent by the user.
func (p ProfilePatch) ValidateUpdate() error {
	if p.Email != nil {
		return ErrEmailReadOnly
	}
	return p.Validate()
}

// ApplyTo writes the set fields onto dst. Gateways use it to merge a patch
// into their stored record; clients never merge locally.
func (p ProfilePatch) ApplyTo(dst *Profile) {
	if p.Email != nil {
		dst.Email = *p.Email
	}
	if p.DisplayName != nil {
		dst.DisplayName = *p.DisplayName
	}
	if p.TargetBand != nil {
		dst.TargetBand = *p.TargetBand
	}
	if p.AvatarIndex != nil {
		dst.AvatarIndex = *p.AvatarIndex
	}
	if p.PrepDuration != nil {
		dst.PrepDuration = *p.PrepDuration
	}
	if p.ReferralSource != nil {
		dst.ReferralSource = *p.ReferralSource
	}
	if p.Goals != nil {
		dst.Goals = p.Goals.Clone()
	}
}
