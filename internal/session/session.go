// Package session keeps the signed-in user between requests. A Manager is
// passed explicitly to the handlers that need it; there is no package state.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bizdash/internal/core"
	"bizdash/internal/log"
)

// DefaultTTL is how long a session lives after login.
const DefaultTTL = 8 * time.Hour

var (
	ErrNoSession = errors.New("no session")
	ErrExpired   = errors.New("session expired")
)

// Session is an opaque token bound to a user until ExpiresAt.
type Session struct {
	Token     string
	User      core.User
	ExpiresAt time.Time
}

// IsAuthenticated compares now against the expiry and nothing else.
func (s Session) IsAuthenticated(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// Store persists sessions by token.
type Store interface {
	Save(ctx context.Context, s Session) error
	// Load returns ErrNoSession when the token is unknown.
	Load(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes sessions whose expiry is not after now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Manager implements init/read/clear over a Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger
}

func NewManager(store Store, ttl time.Duration, logger *log.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentSession),
	}
}

// WithClock replaces the time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Init starts a session for u. The password never leaves this function.
func (m *Manager) Init(ctx context.Context, u core.User) (Session, error) {
	u.Password = ""
	s := Session{
		Token:     uuid.NewString(),
		User:      u,
		ExpiresAt: m.now().Add(m.ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("init session: %w", err)
	}
	m.logger.InfoContext(ctx, "Session started", log.FieldUser, u.Username, log.FieldOperation, log.OpLogin)
	return s, nil
}

// Read returns the live session for token. Expired sessions are removed and
// reported as ErrExpired.
func (m *Manager) Read(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	s, err := m.store.Load(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if !s.IsAuthenticated(m.now()) {
		if err := m.store.Delete(ctx, token); err != nil {
			m.logger.WarnContext(ctx, "Failed to drop expired session", log.FieldError, err)
		}
		return Session{}, ErrExpired
	}
	return s, nil
}

// Clear ends the session. Clearing an unknown token is not an error.
func (m *Manager) Clear(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	m.logger.InfoContext(ctx, "Session cleared", log.FieldOperation, log.OpLogout)
	return nil
}

// GC drops every expired session and returns how many were removed.
func (m *Manager) GC(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("session gc: %w", err)
	}
	if n > 0 {
		m.logger.DebugContext(ctx, "Expired sessions removed", "count", n)
	}
	return n, nil
}

type ctxKey struct{}

// NewContext returns a context carrying s.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by NewContext.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
