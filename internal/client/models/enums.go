package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrInvalidBandScore      = errors.New("invalid target band score")
	ErrInvalidPrepDuration   = errors.New("invalid prep duration")
	ErrInvalidReferralSource = errors.New("invalid referral source")
	ErrInvalidGoal           = errors.New("invalid goal")
	ErrInvalidSkill          = errors.New("invalid skill category")
)

// BandScore is an IELTS band on the half-point scale.
type BandScore float64

// DefaultBandScore is preselected by the signup wizard.
const DefaultBandScore BandScore = 7.0

// BandScores lists every selectable target band.
var BandScores = []BandScore{4.0, 4.5, 5.0, 5.5, 6.0, 6.5, 7.0, 7.5, 8.0, 8.5, 9.0}

// Valid reports whether b is one of BandScores.
func (b BandScore) Valid() bool {
	return slices.Contains(BandScores, b)
}

func (b BandScore) String() string {
	return strconv.FormatFloat(float64(b), 'f', 1, 64)
}

// ParseBandScore accepts "7", "7.0" or "7.5" style input.
func ParseBandScore(s string) (BandScore, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBandScore, s)
	}
	b := BandScore(f)
	if !b.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBandScore, s)
	}
	return b, nil
}

// PrepDuration is how long the learner plans to prepare. Empty means unset.
type PrepDuration string

const (
	PrepLessThanMonth PrepDuration = "less_than_1_month"
	PrepOneToThree    PrepDuration = "1_to_3_months"
	PrepThreeToSix    PrepDuration = "3_to_6_months"
	PrepMoreThanSix   PrepDuration = "more_than_6_months"
	PrepDurationUnset PrepDuration = ""
)

var PrepDurations = []PrepDuration{PrepLessThanMonth, PrepOneToThree, PrepThreeToSix, PrepMoreThanSix}

// Valid reports whether p is unset or one of PrepDurations.
func (p PrepDuration) Valid() bool {
	return p == PrepDurationUnset || slices.Contains(PrepDurations, p)
}

func ParsePrepDuration(s string) (PrepDuration, error) {
	p := PrepDuration(strings.TrimSpace(s))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrepDuration, s)
	}
	return p, nil
}

// ReferralSource records how the learner found the app. Empty means unset.
type ReferralSource string

const (
	ReferralFriend        ReferralSource = "friend"
	ReferralSocialMedia   ReferralSource = "social_media"
	ReferralSearchEngine  ReferralSource = "search_engine"
	ReferralTeacher       ReferralSource = "teacher"
	ReferralAdvertisement ReferralSource = "advertisement"
	ReferralOther         ReferralSource = "other"
	ReferralUnset         ReferralSource = ""
)

var ReferralSources = []ReferralSource{
	ReferralFriend, ReferralSocialMedia, ReferralSearchEngine,
	ReferralTeacher, ReferralAdvertisement, ReferralOther,
}

func (r ReferralSource) Valid() bool {
	return r == ReferralUnset || slices.Contains(ReferralSources, r)
}

func ParseReferralSource(s string) (ReferralSource, error) {
	r := ReferralSource(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidReferralSource, s)
	}
	return r, nil
}

// Goal is a learning goal tag.
type Goal string

const (
	GoalStudyAbroad         Goal = "study_abroad"
	GoalImmigration         Goal = "immigration"
	GoalCareer              Goal = "career"
	GoalUniversityAdmission Goal = "university_admission"
	GoalSelfImprovement     Goal = "self_improvement"
	GoalSpeakingConfidence  Goal = "speaking_confidence"
)

var Goals = []Goal{
	GoalStudyAbroad, GoalImmigration, GoalCareer,
	GoalUniversityAdmission, GoalSelfImprovement, GoalSpeakingConfidence,
}

func (g Goal) Valid() bool { return slices.Contains(Goals, g) }

func ParseGoal(s string) (Goal, error) {
	g := Goal(strings.TrimSpace(s))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidGoal, s)
	}
	return g, nil
}

// GoalSet is a set of goals. It marshals to a sorted JSON array.
type GoalSet map[Goal]struct{}

// NewGoalSet builds a set from goals, collapsing duplicates.
func NewGoalSet(goals ...Goal) GoalSet {
	s := make(GoalSet, len(goals))
	for _, g := range goals {
		s[g] = struct{}{}
	}
	return s
}

func (s GoalSet) Has(g Goal) bool {
	_, ok := s[g]
	return ok
}

// Toggle flips membership of g.
func (s *GoalSet) Toggle(g Goal) {
	if *s == nil {
		*s = make(GoalSet)
	}
	if _, ok := (*s)[g]; ok {
		delete(*s, g)
		return
	}
	(*s)[g] = struct{}{}
}

// Slice returns the members in sorted order.
func (s GoalSet) Slice() []Goal {
	out := make([]Goal, 0, len(s))
	for g := range s {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

func (s GoalSet) Clone() GoalSet {
	if s == nil {
		return nil
	}
	c := make(GoalSet, len(s))
	for g := range s {
		c[g] = struct{}{}
	}
	return c
}

// Equal compares membership; nil and empty sets are equal.
func (s GoalSet) Equal(o GoalSet) bool {
	if len(s) != len(o) {
		return false
	}
	for g := range s {
		if !o.Has(g) {
			return false
		}
	}
	return true
}

// Validate returns the first unknown goal in the set.
func (s GoalSet) Validate() error {
	for _, g := range s.Slice() {
		if !g.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidGoal, g)
		}
	}
	return nil
}

func (s GoalSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *GoalSet) UnmarshalJSON(data []byte) error {
	var goals []Goal
	if err := json.Unmarshal(data, &goals); err != nil {
		return err
	}
	*s = NewGoalSet(goals...)
	return nil
}

// SkillCategory is one of the four IELTS sections.
type SkillCategory string

const (
	SkillListening SkillCategory = "listening"
	SkillReading   SkillCategory = "reading"
	SkillWriting   SkillCategory = "writing"
	SkillSpeaking  SkillCategory = "speaking"
)

var SkillCategories = []SkillCategory{SkillListening, SkillReading, SkillWriting, SkillSpeaking}

func (c SkillCategory) Valid() bool { return slices.Contains(SkillCategories, c) }

func ParseSkillCategory(s string) (SkillCategory, error) {
	c := SkillCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSkill, s)
	}
	return c, nil
}
