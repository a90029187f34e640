// Package service holds the feed coordinator: the single owner of the
// profile, post, and notification stores for one signed-in session. All
// commands and derived views go through it.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/storage"
	"agora/internal/store"
)

// SessionState is the lifecycle state of a coordinator.
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateLoading         SessionState = "loading"
	StateReady           SessionState = "ready"
)

// validUserID is applied to persisted profile keys during hydration.
// Anything that is not purely alphanumeric is treated as corrupt and dropped.
var validUserID = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// IdentitySyncer is the slice of the identity provider the coordinator
// needs: display-name sync and account destruction.
type IdentitySyncer interface {
	SetDisplayName(ctx context.Context, userID, name string) error
	DeleteCurrentUser(ctx context.Context, userID string) error
}

// Publisher pushes freshly recorded notifications to connected recipients.
// Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Coordinator owns the three stores behind one session and mediates every
// command and query. Persistence is mirrored to the storage blobs after
// each mutation without blocking the caller.
type Coordinator struct {
	mu    sync.Mutex
	state SessionState

	userID          string
	needsOnboarding bool

	profiles      *store.ProfileDirectory
	posts         *store.PostStore
	notifications *store.NotificationLog

	blobs    storage.Store
	identity IdentitySyncer
	events   Publisher
	logger   *slog.Logger

	now   func() time.Time
	newID func() string

	persistOps  chan func()
	persistQuit chan struct{}
	persistWG   sync.WaitGroup
}

// NewCoordinator builds an unauthenticated coordinator over the given
// storage backend. events may be nil when realtime push is not wired.
func NewCoordinator(blobs storage.Store, idp IdentitySyncer, events Publisher) *Coordinator {
	c := &Coordinator{
		state:         StateUnauthenticated,
		profiles:      store.NewProfileDirectory(),
		posts:         store.NewPostStore(),
		notifications: store.NewNotificationLog(),
		blobs:         blobs,
		identity:      idp,
		events:        events,
		logger:        observability.Logger,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
		persistOps:    make(chan func(), persistQueueSize),
		persistQuit:   make(chan struct{}),
	}
	go c.runPersistWorker()
	return c
}

// State returns the session lifecycle state.
func (c *Coordinator) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the session owner's id, or "" before hydration.
func (c *Coordinator) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// NeedsOnboarding reports whether the session hydrated into the one-shot
// "suggest people to follow" sub-state.
func (c *Coordinator) NeedsOnboarding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.needsOnboarding
}

// BeginSession hydrates the stores for the given user and moves the session
// to Ready. Malformed persisted blobs are discarded, never fatal.
func (c *Coordinator) BeginSession(ctx context.Context, userID, displayName string) error {
	if !validUserID.MatchString(userID) {
		return models.NewValidationError("user id must be alphanumeric")
	}
	done := observability.TrackHydration()
	defer done()

	c.mu.Lock()
	c.state = StateLoading
	c.userID = userID
	c.mu.Unlock()

	c.hydratePosts(ctx)
	c.hydrateProfiles(ctx)
	c.backfillProfilesFromPosts()
	ownAvatar := c.resolveOwnAvatar(ctx, userID)

	own := c.profiles.Ensure(models.Profile{
		UserID:    userID,
		Username:  displayName,
		AvatarURL: ownAvatar,
	})
	if ownAvatar != "" && own.AvatarURL != ownAvatar {
		if _, err := c.profiles.SetAvatar(userID, ownAvatar); err == nil {
			c.posts.PropagateAuthorIdentity(userID, models.AuthorSnapshot{AvatarURL: ownAvatar})
		}
	}

	c.hydrateNotifications(ctx, userID)
	onboarding := c.consumeOnboardingFlag(ctx, userID)

	c.mu.Lock()
	c.needsOnboarding = onboarding && len(own.Following) == 0
	c.state = StateReady
	c.mu.Unlock()

	observability.SessionsActive.Inc()
	c.logger.InfoContext(ctx, "session ready",
		slog.String("user_id", userID),
		slog.Int("posts", c.posts.Len()),
		slog.Int("profiles", c.profiles.Len()),
	)
	return nil
}

// EndSession flushes pending writes and clears all in-memory state.
// Persisted blobs survive for the next login.
func (c *Coordinator) EndSession(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateUnauthenticated {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.persistPosts(ctx)
	c.persistProfiles(ctx)
	c.persistOwnNotifications(ctx)
	c.Flush()

	c.mu.Lock()
	c.reset()
	c.mu.Unlock()
	observability.SessionsActive.Dec()
}

// reset must be called with the mutex held.
func (c *Coordinator) reset() {
	c.state = StateUnauthenticated
	c.userID = ""
	c.needsOnboarding = false
	c.profiles = store.NewProfileDirectory()
	c.posts = store.NewPostStore()
	c.notifications = store.NewNotificationLog()
}

// Flush waits for in-flight background persistence to finish. Used on
// shutdown and in tests.
func (c *Coordinator) Flush() {
	c.persistWG.Wait()
}

// ready returns the session owner id or an error when no session is active.
func (c *Coordinator) ready() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return "", models.NewUnauthorizedError("no active session")
	}
	return c.userID, nil
}

func (c *Coordinator) hydratePosts(ctx context.Context) {
	raw, err := c.blobs.Load(ctx, storage.KeyPosts)
	if err != nil {
		if err != storage.ErrNoValue {
			observability.StorageErrorRate.WithLabelValues("load").Inc()
			c.logger.WarnContext(ctx, "loading posts failed", slog.String("error", err.Error()))
		}
		return
	}
	var posts []models.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		c.logger.WarnContext(ctx, "discarding corrupt posts blob", slog.String("error", err.Error()))
		return
	}
	c.posts.Replace(posts)
}

func (c *Coordinator) hydrateProfiles(ctx context.Context) {
	raw, err := c.blobs.Load(ctx, storage.KeyProfiles)
	if err != nil {
		if err != storage.ErrNoValue {
			observability.StorageErrorRate.WithLabelValues("load").Inc()
			c.logger.WarnContext(ctx, "loading profiles failed", slog.String("error", err.Error()))
		}
		return
	}
	var byID map[string]models.Profile
	if err := json.Unmarshal(raw, &byID); err != nil {
		c.logger.WarnContext(ctx, "discarding corrupt profiles blob", slog.String("error", err.Error()))
		return
	}
	profiles := make([]models.Profile, 0, len(byID))
	for id, p := range byID {
		if !validUserID.MatchString(id) {
			c.logger.WarnContext(ctx, "dropping profile with malformed id", slog.String("key", id))
			continue
		}
		p.UserID = id
		profiles = append(profiles, p)
	}
	c.profiles.Replace(profiles)
}

// backfillProfilesFromPosts guarantees a profile exists for every user that
// ever authored a post or comment, synthesized from the denormalized
// author snapshot when the directory has no record.
func (c *Coordinator) backfillProfilesFromPosts() {
	for _, p := range c.posts.List() {
		if validUserID.MatchString(p.UserID) && !c.profiles.Has(p.UserID) {
			c.profiles.Ensure(models.Profile{
				UserID:    p.UserID,
				Username:  p.Username,
				AvatarURL: p.AvatarURL,
			})
		}
		for _, cm := range p.Comments {
			if validUserID.MatchString(cm.UserID) && !c.profiles.Has(cm.UserID) {
				c.profiles.Ensure(models.Profile{
					UserID:   cm.UserID,
					Username: cm.Username,
				})
			}
		}
	}
}

// resolveOwnAvatar applies the avatar precedence for the session owner:
// stored avatar blob, then directory profile, then generated placeholder.
func (c *Coordinator) resolveOwnAvatar(ctx context.Context, userID string) string {
	raw, err := c.blobs.Load(ctx, storage.AvatarKey(userID))
	if err == nil {
		var url string
		if jsonErr := json.Unmarshal(raw, &url); jsonErr == nil && url != "" {
			return url
		}
	}
	if p, err := c.profiles.Get(userID); err == nil && p.AvatarURL != "" {
		return p.AvatarURL
	}
	return models.PlaceholderAvatar(userID)
}

func (c *Coordinator) hydrateNotifications(ctx context.Context, userID string) {
	raw, err := c.blobs.Load(ctx, storage.NotificationsKey(userID))
	if err != nil {
		if err != storage.ErrNoValue {
			observability.StorageErrorRate.WithLabelValues("load").Inc()
		}
		return
	}
	var entries []models.Notification
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.logger.WarnContext(ctx, "discarding corrupt notifications blob", slog.String("error", err.Error()))
		return
	}
	for i := range entries {
		entries[i].RecipientID = userID
	}
	c.notifications.Replace(entries)
}

// consumeOnboardingFlag reads and clears the one-shot first-login flag. The
// flag is consumed regardless of whether onboarding ends up shown.
func (c *Coordinator) consumeOnboardingFlag(ctx context.Context, userID string) bool {
	key := storage.OnboardingKey(userID)
	_, err := c.blobs.Load(ctx, key)
	if err != nil {
		return false
	}
	if err := c.blobs.Remove(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "clearing onboarding flag failed", slog.String("error", err.Error()))
	}
	return true
}
