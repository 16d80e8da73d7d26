package gateway

import (
	"context"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
)

// SessionListener receives sessions pushed by the gateway. A nil session
// means the gateway invalidated the previous one.
type SessionListener func(s *models.Session)

// Gateway is the remote identity/profile service as seen by the client core.
type Gateway interface {
	// CurrentSession returns the session the gateway still considers valid,
	// or nil when there is none.
	CurrentSession(ctx context.Context) (*models.Session, error)
	// OnSessionChange registers fn for sessions changed outside of the
	// client's own calls (refresh, remote revocation). The returned function
	// removes the registration.
	OnSessionChange(fn SessionListener) (unsubscribe func())

	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password string, meta models.SignupMetadata) (*models.SignUpResult, error)
	SignOut(ctx context.Context) error

	// GetProfile fails with ErrNotFound when the identity has no profile.
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	// UpsertProfile creates or partially updates the profile of userID and
	// returns the stored record.
	UpsertProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.Profile, error)

	Ping(ctx context.Context) error
	Close() error
}

// TokenStore persists the token handle of the signed-in session between
// runs. Remote implementations use it to restore and refresh sessions.
type TokenStore interface {
	Load(ctx context.Context) (*models.TokenHandle, error)
	Save(ctx context.Context, h models.TokenHandle) error
	Clear(ctx context.Context) error
}
