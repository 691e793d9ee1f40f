package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"bizdash/internal/core"
	"bizdash/internal/records"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactiveUser       = errors.New("user is not active")
)

// HashPassword returns a bcrypt hash suitable for the Users table.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// CheckPassword compares a stored password, bcrypt hashed or plain, with the
// one supplied at login.
func CheckPassword(stored, given string) bool {
	if stored == "" {
		return false
	}
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

// Authenticator verifies credentials against the Users table.
type Authenticator struct {
	users records.Finder
}

func NewAuthenticator(users records.Finder) *Authenticator {
	return &Authenticator{users: users}
}

// Authenticate looks the user up by username with a single Find call.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return core.User{}, ErrInvalidCredentials
	}
	sel := records.SelectorFor(records.TableUsers, core.FieldUsername, username)
	users, err := records.Load(ctx, a.users, records.TableUsers, sel, core.NormalizeUser)
	if err != nil {
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	for _, u := range users {
		if !strings.EqualFold(u.Username, username) {
			continue
		}
		if !CheckPassword(u.Password, password) {
			return core.User{}, ErrInvalidCredentials
		}
		if !u.Active {
			return core.User{}, ErrInactiveUser
		}
		u.Password = ""
		return u, nil
	}
	return core.User{}, ErrInvalidCredentials
}
