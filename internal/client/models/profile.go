package models

import (
	"errors"
	"strings"
	"time"
)

// NoAvatar marks a profile without a selected avatar.
const NoAvatar = -1

var ErrInvalidAvatarIndex = errors.New("avatar index must be >= -1")

// Profile is the durable per-user enrollment record kept by the gateway.
type Profile struct {
	UserID         string         `json:"id"`
	DisplayName    string         `json:"display_name"`
	Email          string         `json:"email"`
	TargetBand     BandScore      `json:"target_band"`
	AvatarIndex    int            `json:"avatar_index"`
	PrepDuration   PrepDuration   `json:"prep_duration,omitempty"`
	ReferralSource ReferralSource `json:"referral_source,omitempty"`
	Goals          GoalSet        `json:"goals"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewProfile returns a profile for userID with wizard defaults applied.
func NewProfile(userID, email string) *Profile {
	return &Profile{
		UserID:      userID,
		Email:       email,
		TargetBand:  DefaultBandScore,
		AvatarIndex: NoAvatar,
		Goals:       GoalSet{},
	}
}

// Clone returns a deep copy of p. Clone of nil is nil.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Goals = p.Goals.Clone()
	return &c
}

// SignupMetadata is the enrollment data sent with the account-creation request
// and stored alongside the identity by the gateway. It never holds credentials.
type SignupMetadata struct {
	DisplayName    string         `json:"display_name"`
	TargetBand     BandScore      `json:"target_band,omitempty"`
	PrepDuration   PrepDuration   `json:"prep_duration,omitempty"`
	ReferralSource ReferralSource `json:"referral_source,omitempty"`
	Goals          GoalSet        `json:"goals,omitempty"`
}

func (m SignupMetadata) Clone() SignupMetadata {
	m.Goals = m.Goals.Clone()
	return m
}

// Seed converts the metadata into the patch that creates the profile of the
// identity with the given email. Zero or unknown values fall back to profile
// defaults.
func (m SignupMetadata) Seed(email string) ProfilePatch {
	band := m.TargetBand
	if !band.Valid() {
		band = DefaultBandScore
	}
	avatar := NoAvatar
	var name *string
	if n := strings.TrimSpace(m.DisplayName); n != "" {
		name = &n
	}
	prep := m.PrepDuration
	if !prep.Valid() {
		prep = PrepDurationUnset
	}
	ref := m.ReferralSource
	if !ref.Valid() {
		ref = ReferralUnset
	}
	goals := GoalSet{}
	for g := range m.Goals {
		if g.Valid() {
			goals[g] = struct{}{}
		}
	}
	var mail *string
	if e := strings.TrimSpace(email); e != "" {
		mail = &e
	}
	return ProfilePatch{
		Email:          mail,
		DisplayName:    name,
		TargetBand:     &band,
		AvatarIndex:    &avatar,
		PrepDuration:   &prep,
		ReferralSource: &ref,
		Goals:          &goals,
	}
}
