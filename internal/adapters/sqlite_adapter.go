// Package adapters binds the SQLite repository to the ports of the session
// and export packages.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bizdash/internal/core"
	"bizdash/internal/session"
	"bizdash/internal/storage"
)

// SessionStore implements session.Store on SQLite.
type SessionStore struct {
	repo *storage.SQLiteRepository
	now  func() time.Time
}

var _ session.Store = (*SessionStore)(nil)

func NewSessionStore(repo *storage.SQLiteRepository) *SessionStore {
	return &SessionStore{repo: repo, now: time.Now}
}

func (a *SessionStore) Save(ctx context.Context, s session.Session) error {
	u := s.User
	u.Password = ""
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	return a.repo.SaveSession(ctx, storage.SessionRow{
		Token:     s.Token,
		User:      raw,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: a.now(),
	})
}

func (a *SessionStore) Load(ctx context.Context, token string) (session.Session, error) {
	row, err := a.repo.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return session.Session{}, session.ErrNoSession
	}
	if err != nil {
		return session.Session{}, err
	}
	var u core.User
	if err := json.Unmarshal(row.User, &u); err != nil {
		return session.Session{}, fmt.Errorf("decode session user: %w", err)
	}
	return session.Session{Token: row.Token, User: u, ExpiresAt: row.ExpiresAt}, nil
}

func (a *SessionStore) Delete(ctx context.Context, token string) error {
	return a.repo.DeleteSession(ctx, token)
}

func (a *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := a.repo.DeleteExpiredSessions(ctx, now)
	return int(n), err
}
