// Package storage provides the key-value blob store the feed engine persists
// its state into. Values are opaque JSON blobs; keys are flat strings, scoped
// per user where the data belongs to one session.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoValue is returned by Load when the key has never been saved.
var ErrNoValue = errors.New("storage: no value for key")

// Store is the persistence port. Implementations must treat values as opaque
// and must not interpret keys beyond equality.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Well-known keys for the persisted state layout.
const (
	KeyPosts    = "posts"
	KeyProfiles = "profiles"
	KeyAccounts = "accounts"
)

// NotificationsKey returns the per-user notification log key.
func NotificationsKey(userID string) string {
	return fmt.Sprintf("notifications_%s", userID)
}

// AvatarKey returns the per-user avatar URL key.
func AvatarKey(userID string) string {
	return fmt.Sprintf("avatar_%s", userID)
}

// OnboardingKey returns the per-user one-shot first-login flag key.
func OnboardingKey(userID string) string {
	return fmt.Sprintf("onboarding_%s", userID)
}
