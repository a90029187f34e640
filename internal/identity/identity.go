// Package identity authenticates users and owns the account records behind
// them. Profile data lives elsewhere; identity knows only credentials,
// display names, and session tokens.
package identity

import (
	"context"
	"crypto/rand"
	"time"
)

// Account is the authentication-side record for one user.
type Account struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	LastLoginAt  time.Time `json:"lastLoginAt"`
}

// Provider is what the rest of the system sees of authentication.
type Provider interface {
	// SignUp registers a new account and returns it with a session token.
	SignUp(ctx context.Context, email, password, displayName string) (Account, string, error)
	// SignIn authenticates an existing account and returns a fresh token.
	SignIn(ctx context.Context, email, password string) (Account, string, error)
	// Verify parses a session token and returns the account it belongs to.
	Verify(ctx context.Context, token string) (Account, error)
	// SetDisplayName updates the account's display name.
	SetDisplayName(ctx context.Context, userID, name string) error
	// DeleteCurrentUser removes the account. It fails with a reauth error
	// when the session is too old to authorize destruction.
	DeleteCurrentUser(ctx context.Context, userID string) error
}

const userIDLen = 28

const userIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewUserID returns a fresh 28-character alphanumeric user id. Alphanumeric
// only, so ids survive the strict key filter applied during hydration.
func NewUserID() string {
	buf := make([]byte, userIDLen)
	if _, err := rand.Read(buf); err != nil {
		panic("identity: crypto/rand unavailable: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = userIDAlphabet[int(b)%len(userIDAlphabet)]
	}
	return string(buf)
}
