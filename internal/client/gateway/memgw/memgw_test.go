package memgw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newGateway(opts ...Option) *Gateway {
	return New(append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)...)
}

func TestSignUp_SignsInAndStoresMetadata(t *testing.T) {
	g := newGateway()
	ctx := context.Background()

	res, err := g.SignUp(ctx, "A@Example.com", "secret1", models.SignupMetadata{DisplayName: "Aziz"})
	require.NoError(t, err)
	require.NotEmpty(t, res.UserID)
	require.NotNil(t, res.Session)
	assert.Equal(t, res.UserID, res.Session.UserID)
	assert.Equal(t, "a@example.com", res.Session.Email)
	assert.Equal(t, "Aziz", res.Session.Metadata.DisplayName)

	cur, err := g.CurrentSession(ctx)
	require.NoError(t, err)
	assert.True(t, models.SameSession(cur, res.Session))
}

func TestSignUp_Rejections(t *testing.T) {
	g := newGateway()
	ctx := context.Background()

	_, err := g.SignUp(ctx, "a@example.com", "12345", models.SignupMetadata{})
	require.ErrorIs(t, err, gateway.ErrRejected)
	assert.Equal(t, "Password should be at least 6 characters", gateway.Message(err))

	_, err = g.SignUp(ctx, "a@example.com", "123456", models.SignupMetadata{})
	require.NoError(t, err)
	_, err = g.SignUp(ctx, "a@example.com", "123456", models.SignupMetadata{})
	require.ErrorIs(t, err, gateway.ErrRejected)
	assert.Equal(t, "User already registered", gateway.Message(err))
}

func TestWithoutAutoSignIn_ReturnsNoSession(t *testing.T) {
	g := newGateway(WithoutAutoSignIn())
	res, err := g.SignUp(context.Background(), "a@example.com", "123456", models.SignupMetadata{})
	require.NoError(t, err)
	assert.Nil(t, res.Session)

	cur, err := g.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestSignIn_WrongPasswordIsUnauthorized(t *testing.T) {
	g := newGateway()
	ctx := context.Background()
	_, err := g.SignUp(ctx, "a@example.com", "123456", models.SignupMetadata{})
	require.NoError(t, err)
	require.NoError(t, g.SignOut(ctx))

	_, err = g.SignIn(ctx, "a@example.com", "654321")
	require.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.Equal(t, "Invalid login credentials", gateway.Message(err))

	s, err := g.SignIn(ctx, "a@example.com", "123456")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token.AccessToken)
}

func TestProfile_UpsertCreatesThenMerges(t *testing.T) {
	g := newGateway()
	ctx := context.Background()
	res, err := g.SignUp(ctx, "a@example.com", "123456", models.SignupMetadata{})
	require.NoError(t, err)

	_, err = g.GetProfile(ctx, res.UserID)
	require.ErrorIs(t, err, gateway.ErrNotFound)

	band := models.BandScore(8.0)
	p, err := g.UpsertProfile(ctx, res.UserID, models.ProfilePatch{TargetBand: &band})
	require.NoError(t, err)
	assert.Equal(t, band, p.TargetBand)
	assert.Equal(t, models.NoAvatar, p.AvatarIndex)
	assert.Equal(t, "a@example.com", p.Email)

	name := "Aziz"
	p, err = g.UpsertProfile(ctx, res.UserID, models.ProfilePatch{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, band, p.TargetBand)
	assert.Equal(t, "Aziz", p.DisplayName)

	got, err := g.GetProfile(ctx, res.UserID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestProfile_RequiresMatchingSession(t *testing.T) {
	g := newGateway()
	ctx := context.Background()
	res, err := g.SignUp(ctx, "a@example.com", "123456", models.SignupMetadata{})
	require.NoError(t, err)
	require.NoError(t, g.SignOut(ctx))

	_, err = g.GetProfile(ctx, res.UserID)
	require.ErrorIs(t, err, gateway.ErrUnauthorized)
	_, err = g.UpsertProfile(ctx, res.UserID, models.SignupMetadata{}.Seed(""))
	require.ErrorIs(t, err, gateway.ErrUnauthorized)
}

func TestUpsertProfile_RejectsInvalidPatch(t *testing.T) {
	g := newGateway()
	ctx := context.Background()
	res, err := g.SignUp(ctx, "a@example.com", "123456", models.SignupMetadata{})
	require.NoError(t, err)

	_, err = g.UpsertProfile(ctx, res.UserID, models.ProfilePatch{})
	require.ErrorIs(t, err, gateway.ErrRejected)
	require.ErrorIs(t, err, models.ErrEmptyPatch)
}

func TestInvalidate_PushesNilToListeners(t *testing.T) {
	g := newGateway()
	ctx := context.Background()
	_, err := g.SignUp(ctx, "a@example.com", "123456", models.SignupMetadata{})
	require.NoError(t, err)

	var got []*models.Session
	calls := 0
	unsubscribe := g.OnSessionChange(func(s *models.Session) {
		calls++
		got = append(got, s)
	})

	g.Invalidate()
	g.Invalidate() // no session left: no second push
	require.Equal(t, 1, calls)
	assert.Nil(t, got[0])

	unsubscribe()
	_, err = g.SignIn(ctx, "a@example.com", "123456")
	require.NoError(t, err)
	g.Invalidate()
	assert.Equal(t, 1, calls)
}

func TestCurrentSession_ExpiredTokenIsDropped(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g := newGateway(WithClock(func() time.Time { return now }), WithTokenTTL(time.Minute))
	ctx := context.Background()
	_, err := g.SignUp(ctx, "a@example.com", "123456", models.SignupMetadata{})
	require.NoError(t, err)

	pushed := 0
	g.OnSessionChange(func(s *models.Session) { pushed++ })

	now = now.Add(2 * time.Minute)
	cur, err := g.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
	assert.Equal(t, 1, pushed)
}

func TestFailNext_AppliesOnceAndCountsCalls(t *testing.T) {
	g := newGateway()
	ctx := context.Background()
	boom := errors.New("boom")
	g.FailNext(OpPing, boom)

	require.ErrorIs(t, g.Ping(ctx), boom)
	require.NoError(t, g.Ping(ctx))
	assert.Equal(t, 2, g.Calls(OpPing))
}

func TestClose_MakesGatewayUnavailable(t *testing.T) {
	g := newGateway()
	require.NoError(t, g.Close())
	require.ErrorIs(t, g.Ping(context.Background()), gateway.ErrUnavailable)
}
