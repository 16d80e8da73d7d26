package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	h       *models.TokenHandle
	loadErr error
	loads   int
}

func (m *memStore) Load(context.Context) (*models.TokenHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.h == nil {
		return nil, nil
	}
	h := *m.h
	return &h, nil
}

func (m *memStore) Save(_ context.Context, h models.TokenHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.h = &h
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.h = nil
	return nil
}

func (m *memStore) saved() *models.TokenHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h
}

func TestTokens_LoadsSavedHandleOnce(t *testing.T) {
	store := &memStore{h: &models.TokenHandle{AccessToken: "a1"}}
	tk := NewTokens(store, nil, nil)
	ctx := context.Background()

	require.Equal(t, "a1", tk.Handle(ctx).AccessToken)
	require.Equal(t, "a1", tk.Handle(ctx).AccessToken)
	assert.Equal(t, 1, store.loads)
}

func TestTokens_UnreadableStoreIsSignedOut(t *testing.T) {
	tk := NewTokens(&memStore{loadErr: errors.New("disk")}, nil, nil)
	assert.Nil(t, tk.Handle(context.Background()))
}

func TestTokens_ValidRefreshesExpiredHandle(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &memStore{h: &models.TokenHandle{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: now.Add(5 * time.Second)}}
	tk := NewTokens(store, nil, func() time.Time { return now })

	var pushed []*models.Session
	tk.Subscribe(func(s *models.Session) { pushed = append(pushed, s) })

	calls := 0
	refresh := func(_ context.Context, old models.TokenHandle) (models.TokenHandle, *models.Session, error) {
		calls++
		assert.Equal(t, "r1", old.RefreshToken)
		return models.TokenHandle{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: now.Add(time.Hour)},
			&models.Session{UserID: "u1"}, nil
	}

	h, err := tk.Valid(context.Background(), refresh)
	require.NoError(t, err)
	assert.Equal(t, "a2", h.AccessToken)
	assert.Equal(t, "a2", store.saved().AccessToken)
	require.Len(t, pushed, 1)
	assert.Equal(t, "u1", pushed[0].UserID)

	// fresh now: no second exchange
	h, err = tk.Valid(context.Background(), refresh)
	require.NoError(t, err)
	assert.Equal(t, "a2", h.AccessToken)
	assert.Equal(t, 1, calls)
}

func TestTokens_RefreshSkipsWhenAlreadyReplaced(t *testing.T) {
	now := time.Now()
	tk := NewTokens(nil, nil, func() time.Time { return now })
	ctx := context.Background()
	tk.Set(ctx, models.TokenHandle{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: now.Add(time.Hour)}, &models.Session{UserID: "u1"}, false)

	h, err := tk.Refresh(ctx, models.TokenHandle{AccessToken: "a1", RefreshToken: "r1"}, func(context.Context, models.TokenHandle) (models.TokenHandle, *models.Session, error) {
		t.Fatal("refresh must not run")
		return models.TokenHandle{}, nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a2", h.AccessToken)
}

func TestTokens_RefusedRefreshInvalidates(t *testing.T) {
	store := &memStore{}
	tk := NewTokens(store, nil, nil)
	ctx := context.Background()
	old := models.TokenHandle{AccessToken: "a1", RefreshToken: "r1"}
	tk.Set(ctx, old, &models.Session{UserID: "u1"}, false)

	var pushed []*models.Session
	tk.Subscribe(func(s *models.Session) { pushed = append(pushed, s) })

	_, err := tk.Refresh(ctx, old, func(context.Context, models.TokenHandle) (models.TokenHandle, *models.Session, error) {
		return models.TokenHandle{}, nil, NewError(ErrRejected, "Invalid Refresh Token")
	})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Invalid Refresh Token", Message(err))
	assert.Equal(t, []*models.Session{nil}, pushed)
	assert.Nil(t, store.saved())
	assert.Nil(t, tk.Handle(ctx))
	assert.Nil(t, tk.Current())
}

func TestTokens_OutageDuringRefreshKeepsSession(t *testing.T) {
	tk := NewTokens(nil, nil, nil)
	ctx := context.Background()
	old := models.TokenHandle{AccessToken: "a1", RefreshToken: "r1"}
	tk.Set(ctx, old, &models.Session{UserID: "u1"}, false)

	_, err := tk.Refresh(ctx, old, func(context.Context, models.TokenHandle) (models.TokenHandle, *models.Session, error) {
		return models.TokenHandle{}, nil, NewError(ErrUnavailable, "timeout")
	})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "a1", tk.Handle(ctx).AccessToken)
}

func TestTokens_NoRefreshTokenInvalidates(t *testing.T) {
	now := time.Now()
	tk := NewTokens(nil, nil, func() time.Time { return now })
	ctx := context.Background()
	tk.Set(ctx, models.TokenHandle{AccessToken: "a1", ExpiresAt: now.Add(-time.Minute)}, &models.Session{UserID: "u1"}, false)

	_, err := tk.Valid(ctx, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, tk.Handle(ctx))
}

func TestTokens_ForgetDoesNotPush(t *testing.T) {
	store := &memStore{}
	tk := NewTokens(store, nil, nil)
	ctx := context.Background()
	tk.Set(ctx, models.TokenHandle{AccessToken: "a1"}, &models.Session{UserID: "u1"}, false)

	pushed := 0
	unsubscribe := tk.Subscribe(func(*models.Session) { pushed++ })
	tk.Forget(ctx)
	assert.Zero(t, pushed)
	assert.Nil(t, store.saved())

	tk.Set(ctx, models.TokenHandle{AccessToken: "a2"}, &models.Session{UserID: "u1"}, false)
	unsubscribe()
	tk.Invalidate(ctx)
	assert.Zero(t, pushed)
}

// gatedRefresh blocks inside the exchange until release is closed and then
// returns result.
func gatedRefresh(started chan<- struct{}, release <-chan struct{}, result models.TokenHandle, err error) RefreshFunc {
	return func(context.Context, models.TokenHandle) (models.TokenHandle, *models.Session, error) {
		close(started)
		<-release
		if err != nil {
			return models.TokenHandle{}, nil, err
		}
		return result, &models.Session{UserID: "u1", Token: result}, nil
	}
}

func TestTokens_SignOutDuringRefreshDropsResult(t *testing.T) {
	now := time.Now()
	store := &memStore{}
	tk := NewTokens(store, nil, func() time.Time { return now })
	ctx := context.Background()
	old := models.TokenHandle{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: now.Add(-time.Minute)}
	tk.Set(ctx, old, &models.Session{UserID: "u1"}, false)

	var mu sync.Mutex
	var pushed []*models.Session
	tk.Subscribe(func(s *models.Session) {
		mu.Lock()
		defer mu.Unlock()
		pushed = append(pushed, s)
	})

	started, release := make(chan struct{}), make(chan struct{})
	fresh := models.TokenHandle{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: now.Add(time.Hour)}
	done := make(chan error, 1)
	go func() {
		_, err := tk.Valid(ctx, gatedRefresh(started, release, fresh, nil))
		done <- err
	}()

	<-started
	tk.Forget(ctx)
	close(release)

	err := <-done
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, tk.Handle(ctx))
	assert.Nil(t, tk.Current())
	assert.Nil(t, store.saved())
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, pushed)
}

func TestTokens_SignInDuringRefreshKeepsNewSession(t *testing.T) {
	now := time.Now()
	store := &memStore{}
	tk := NewTokens(store, nil, func() time.Time { return now })
	ctx := context.Background()
	old := models.TokenHandle{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: now.Add(-time.Minute)}
	tk.Set(ctx, old, &models.Session{UserID: "u1"}, false)

	started, release := make(chan struct{}), make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := tk.Refresh(ctx, old, gatedRefresh(started, release, models.TokenHandle{}, NewError(ErrRejected, "Invalid Refresh Token")))
		done <- err
	}()

	<-started
	other := models.TokenHandle{AccessToken: "b1", RefreshToken: "s1", ExpiresAt: now.Add(time.Hour)}
	tk.Set(ctx, other, &models.Session{UserID: "u2"}, false)
	close(release)

	require.ErrorIs(t, <-done, ErrUnauthorized)
	// the refusal belongs to the old session and must not drop the new one
	require.NotNil(t, tk.Handle(ctx))
	assert.Equal(t, "b1", tk.Handle(ctx).AccessToken)
	assert.Equal(t, "u2", tk.Current().UserID)
	assert.Equal(t, "b1", store.saved().AccessToken)
}
