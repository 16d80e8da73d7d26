package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/services"
)

func lines(l ...string) string { return strings.Join(l, "\n") + "\n" }

func TestSignIn(t *testing.T) {
	app := newTestApp(t, lines("a@example.com", "wrong1", "a@example.com", testPassword), "a@example.com")
	ctx := context.Background()

	err := app.SignIn(ctx)
	require.ErrorIs(t, err, services.ErrInvalidCredentials)
	assert.False(t, app.isSignedIn())

	require.NoError(t, app.SignIn(ctx))
	assert.True(t, app.isSignedIn())
	assert.Equal(t, ModeOnline, app.Mode())
	assert.Contains(t, app.out.String(), "Signed in as a@example.com")

	assert.ErrorContains(t, app.SignIn(ctx), "already signed in")
	app.waitIdle(t)
}

func TestSignOut(t *testing.T) {
	app := newTestApp(t, lines("a@example.com", testPassword), "a@example.com")
	ctx := context.Background()

	require.ErrorIs(t, app.SignOut(ctx), services.ErrNoSession)

	require.NoError(t, app.SignIn(ctx))
	app.waitIdle(t)
	require.NotNil(t, app.core.Profiles.Profile())

	require.NoError(t, app.SignOut(ctx))
	assert.False(t, app.isSignedIn())
	assert.Nil(t, app.core.Profiles.Profile(), "mirror cleared with the session")
	assert.Contains(t, app.out.String(), "Signed out")
}

func TestStatus(t *testing.T) {
	app := newTestApp(t, lines("a@example.com", testPassword), "a@example.com")
	ctx := context.Background()

	require.NoError(t, app.Status(ctx))
	assert.Contains(t, app.out.String(), "Connectivity: unknown")
	assert.Contains(t, app.out.String(), "Not signed in")

	require.NoError(t, app.SignIn(ctx))
	app.waitIdle(t)
	app.out.Reset()
	require.NoError(t, app.Status(ctx))
	assert.Contains(t, app.out.String(), "Signed in as a@example.com")
	assert.Contains(t, app.out.String(), "Profile: loaded")
}

func TestShowProfile_SeedsMissingProfile(t *testing.T) {
	app := newTestApp(t, lines("a@example.com", testPassword), "a@example.com")
	ctx := context.Background()

	require.ErrorIs(t, app.ShowProfile(ctx), services.ErrNoSession)

	require.NoError(t, app.SignIn(ctx))
	app.waitIdle(t)
	app.out.Reset()

	require.NoError(t, app.ShowProfile(ctx))
	text := app.out.String()
	assert.Contains(t, text, "Aziz")
	assert.Contains(t, text, "6.5")
	assert.Contains(t, text, "Avatar:          none")
}

func TestUpdateProfile(t *testing.T) {
	app := newTestApp(t, lines("a@example.com", testPassword), "a@example.com")
	ctx := context.Background()

	require.ErrorIs(t, app.UpdateProfile(ctx, []string{"display_name=Bek"}), services.ErrNoSession)

	require.NoError(t, app.SignIn(ctx))
	app.waitIdle(t)
	uid := app.core.Sessions.Current().UserID

	require.NoError(t, app.UpdateProfile(ctx, []string{
		"display_name=Bek",
		"goals=career,study_abroad",
		"prep_duration=1_to_3_months",
		"target_band=8.5",
	}))

	stored, ok := app.gw.Profile(uid)
	require.True(t, ok)
	assert.Equal(t, "Bek", stored.DisplayName)
	assert.Equal(t, models.BandScore(8.5), stored.TargetBand)
	assert.Equal(t, models.PrepOneToThree, stored.PrepDuration)
	assert.True(t, stored.Goals.Equal(models.NewGoalSet(models.GoalCareer, models.GoalStudyAbroad)))
	assert.Equal(t, "Bek", app.core.Profiles.Profile().DisplayName)

	require.NoError(t, app.UpdateProfile(ctx, []string{"prep_duration=-"}))
	stored, _ = app.gw.Profile(uid)
	assert.Equal(t, models.PrepDurationUnset, stored.PrepDuration, "dash clears")
}

func TestUpdateProfile_Interactive(t *testing.T) {
	app := newTestApp(t, lines("a@example.com", testPassword, "avatar_index=3", "referral_source=teacher", ""), "a@example.com")
	ctx := context.Background()

	require.NoError(t, app.SignIn(ctx))
	app.waitIdle(t)

	require.NoError(t, app.UpdateProfile(ctx, nil))
	p := app.core.Profiles.Profile()
	assert.Equal(t, 3, p.AvatarIndex)
	assert.Equal(t, models.ReferralTeacher, p.ReferralSource)
}

func TestParsePatch(t *testing.T) {
	p, err := parsePatch([]string{"display_name= Bek ", "avatar_index=-1", "goals="})
	require.NoError(t, err)
	require.NotNil(t, p.DisplayName)
	assert.Equal(t, "Bek", *p.DisplayName)
	assert.Equal(t, models.NoAvatar, *p.AvatarIndex)
	require.NotNil(t, p.Goals)
	assert.Empty(t, *p.Goals)

	for _, bad := range [][]string{
		{"target_band=10"},
		{"avatar_index=x"},
		{"avatar_index=-2"},
		{"favourite_colour=blue"},
		{"no equals sign"},
		{"goals=flying"},
		{"display_name="},
		{},
	} {
		_, err := parsePatch(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestProgressCommands(t *testing.T) {
	app := newTestApp(t, lines("n", "y"))
	ctx := context.Background()

	require.NoError(t, app.Complete(ctx, []string{"listening", "q1"}))
	require.NoError(t, app.Complete(ctx, []string{"listening", "q2"}))
	require.NoError(t, app.Complete(ctx, []string{"listening", "q1"}))
	require.NoError(t, app.Complete(ctx, []string{"writing", "task1"}))
	assert.Contains(t, app.out.String(), "listening: 2/40 done")

	assert.ErrorIs(t, app.Complete(ctx, []string{"cooking", "x"}), models.ErrInvalidSkill)
	assert.ErrorContains(t, app.Complete(ctx, []string{"listening"}), "usage")

	app.out.Reset()
	require.NoError(t, app.ShowProgress(ctx))
	text := app.out.String()
	assert.Contains(t, text, "  2/40 ")
	assert.Contains(t, text, "  1/2  ")
	assert.Contains(t, text, "overall")

	require.NoError(t, app.ResetProgress(ctx), "answer no")
	assert.Equal(t, 2, app.core.Progress.Skill(ctx, models.SkillListening).Completed)

	require.NoError(t, app.ResetProgress(ctx), "answer yes")
	assert.Equal(t, 0, app.core.Progress.Summary(ctx).Completed)
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[....................]", bar(0))
	assert.Equal(t, "[##########..........]", bar(0.5))
	assert.Equal(t, "[####################]", bar(1))
	assert.Equal(t, "[####################]", bar(3))
}

func TestSignUp_Wizard(t *testing.T) {
	app := newTestApp(t, lines(
		"Bek", "bek@example.com", "123",
		"",
		"Bek", "bek@example.com", testPassword,
		"8.0", "3_to_6_months", "friend", "career, study_abroad",
		"s",
	))
	ctx := context.Background()

	require.NoError(t, app.SignUp(ctx))
	app.waitIdle(t)

	text := app.out.String()
	assert.Contains(t, text, "password must have at least 6 characters")
	assert.Contains(t, text, "Creating your account...")
	assert.Contains(t, text, "Welcome aboard!")
	assert.Contains(t, text, "Signed in as bek@example.com")

	s := app.core.Sessions.Current()
	require.NotNil(t, s)
	stored, ok := app.gw.Profile(s.UserID)
	require.True(t, ok)
	assert.Equal(t, "Bek", stored.DisplayName)
	assert.Equal(t, models.BandScore(8.0), stored.TargetBand)
	assert.Equal(t, models.PrepThreeToSix, stored.PrepDuration)
	assert.Equal(t, models.ReferralFriend, stored.ReferralSource)
	assert.True(t, stored.Goals.Equal(models.NewGoalSet(models.GoalCareer, models.GoalStudyAbroad)))
}

func TestSignUp_InvalidChoiceIsReported(t *testing.T) {
	app := newTestApp(t, lines(
		"Bek", "bek@example.com", testPassword,
		"12", "someday", "billboard", "flying",
		"c",
	))

	require.NoError(t, app.SignUp(context.Background()))

	text := app.out.String()
	assert.Contains(t, text, "invalid target band score")
	assert.Contains(t, text, "unknown preparation time someday")
	assert.Contains(t, text, "unknown referral source billboard")
	assert.Contains(t, text, "unknown goal flying")
	assert.Contains(t, text, "Sign up cancelled")
	assert.False(t, app.isSignedIn())
}

func TestSignUp_FailureReturnsToProfileStep(t *testing.T) {
	app := newTestApp(t, lines(
		"Aziz", "a@example.com", testPassword,
		"", "", "", "",
		"s",
		"", "", "", "",
		"c",
	), "a@example.com")

	require.NoError(t, app.SignUp(context.Background()))

	text := app.out.String()
	assert.Contains(t, text, "Error: User already registered")
	assert.Equal(t, 2, strings.Count(text, "Target band score"), "profile step asked again")
	assert.Contains(t, text, "Sign up cancelled")
}

func TestSignUp_BackKeepsGoing(t *testing.T) {
	app := newTestApp(t, lines(
		"Bek", "bek@example.com", testPassword,
		"", "", "", "",
		"b",
		"Bek", "bek2@example.com", testPassword,
		"", "", "", "",
		"s",
	))

	require.NoError(t, app.SignUp(context.Background()))
	app.waitIdle(t)

	s := app.core.Sessions.Current()
	require.NotNil(t, s)
	assert.Equal(t, "bek2@example.com", s.Email)
}

func TestSignUp_InputEnds(t *testing.T) {
	app := newTestApp(t, lines("Bek", "bek@example.com"))

	err := app.SignUp(context.Background())
	require.ErrorIs(t, err, ErrInputClosed)
	assert.False(t, app.isSignedIn())
}

func TestSignUp_RequiresSignedOut(t *testing.T) {
	app := newTestApp(t, lines("a@example.com", testPassword), "a@example.com")
	ctx := context.Background()

	require.NoError(t, app.SignIn(ctx))
	app.waitIdle(t)
	assert.ErrorContains(t, app.SignUp(ctx), "already signed in")
}
