package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
)

const sessionKey = "session"

// SessionStore persists the token handle of the signed-in session so a
// restarted client can restore it.
type SessionStore struct {
	repo Repository
}

func NewSessionStore(repo Repository) *SessionStore {
	return &SessionStore{repo: repo}
}

// Load returns the saved handle, or nil when nothing is saved. A value that
// does not decode is treated as nothing saved.
func (s *SessionStore) Load(ctx context.Context) (*models.TokenHandle, error) {
	b, err := s.repo.Get(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}

	var h models.TokenHandle
	if err := json.Unmarshal(b, &h); err != nil || h.AccessToken == "" {
		return nil, nil
	}
	return &h, nil
}

func (s *SessionStore) Save(ctx context.Context, h models.TokenHandle) error {
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode session handle: %w", err)
	}
	return s.repo.Set(ctx, sessionKey, b)
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return s.repo.Delete(ctx, sessionKey)
}
