package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/models"
	"agora/internal/storage"
	"agora/internal/store"
)

const (
	uidAlice = "aaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	uidBob   = "bbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	uidCarol = "cccccccccccccccccccccccccccc"
)

type identityStub struct {
	displayNames map[string]string
	deleteErr    error
	deleted      []string
}

func newIdentityStub() *identityStub {
	return &identityStub{displayNames: make(map[string]string)}
}

func (s *identityStub) SetDisplayName(_ context.Context, userID, name string) error {
	s.displayNames[userID] = name
	return nil
}

func (s *identityStub) DeleteCurrentUser(_ context.Context, userID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, userID)
	return nil
}

// newTestCoordinator returns a Ready coordinator for Alice with
// deterministic ids and timestamps.
func newTestCoordinator(t *testing.T, blobs storage.Store) (*Coordinator, *identityStub) {
	t.Helper()
	idp := newIdentityStub()
	c := NewCoordinator(blobs, idp, nil)
	seq := 0
	c.newID = func() string {
		seq++
		return fmt.Sprintf("id%d", seq)
	}
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		base = base.Add(time.Second)
		return base
	}
	require.NoError(t, c.BeginSession(context.Background(), uidAlice, "Alice"))
	t.Cleanup(c.Close)
	return c, idp
}

func seedProfiles(t *testing.T, blobs storage.Store, profiles ...models.Profile) {
	t.Helper()
	byID := make(map[string]models.Profile)
	for _, p := range profiles {
		byID[p.UserID] = p
	}
	raw, err := json.Marshal(byID)
	require.NoError(t, err)
	require.NoError(t, blobs.Save(context.Background(), storage.KeyProfiles, raw))
}

func profile(id, username string, followers ...string) models.Profile {
	return models.Profile{
		UserID:    id,
		Username:  username,
		AvatarURL: models.PlaceholderAvatar(id),
		Followers: followers,
		Following: []string{},
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	blobs := storage.NewMemoryStore()
	idp := newIdentityStub()
	c := NewCoordinator(blobs, idp, nil)
	assert.Equal(t, StateUnauthenticated, c.State())

	require.NoError(t, c.BeginSession(context.Background(), uidAlice, "Alice"))
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, uidAlice, c.UserID())

	own, err := c.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, "Alice", own.Username)
	assert.Equal(t, models.PlaceholderAvatar(uidAlice), own.AvatarURL)

	c.EndSession(context.Background())
	assert.Equal(t, StateUnauthenticated, c.State())
	_, err = c.CurrentUser()
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))
}

func TestBeginSessionRejectsMalformedID(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(storage.NewMemoryStore(), newIdentityStub(), nil)
	err := c.BeginSession(context.Background(), "not-valid!", "X")
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestHydrationDiscardsCorruptBlobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	require.NoError(t, blobs.Save(ctx, storage.KeyPosts, []byte("{not json")))
	require.NoError(t, blobs.Save(ctx, storage.KeyProfiles, []byte("[]")))

	c, _ := newTestCoordinator(t, blobs)
	feed, err := c.HomeFeed(false)
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestHydrationFiltersMalformedProfileKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	raw, err := json.Marshal(map[string]models.Profile{
		uidBob:        profile(uidBob, "Bob"),
		"bad key!":    profile("bad key!", "Mallory"),
		"also-bad-id": profile("also-bad-id", "Eve"),
	})
	require.NoError(t, err)
	require.NoError(t, blobs.Save(ctx, storage.KeyProfiles, raw))

	c, _ := newTestCoordinator(t, blobs)
	results, err := c.Search("")
	require.NoError(t, err)
	require.Len(t, results.Profiles, 1)
	assert.Equal(t, uidBob, results.Profiles[0].UserID)
}

func TestHydrationBackfillsAuthors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	posts := []models.Post{{
		ID: "p1", UserID: uidBob, Username: "Bob",
		AvatarURL: "https://img/bob.webp",
		Content:   "hi", Timestamp: time.Now().UTC(),
		Comments: []models.Comment{
			{ID: "c1", UserID: uidCarol, Username: "Carol", Text: "hello", Timestamp: time.Now().UTC()},
		},
	}}
	raw, err := json.Marshal(posts)
	require.NoError(t, err)
	require.NoError(t, blobs.Save(ctx, storage.KeyPosts, raw))

	c, _ := newTestCoordinator(t, blobs)

	// Both the post author and the comment author got profiles.
	bob, _, err := c.ProfileView(uidBob)
	require.NoError(t, err)
	assert.Equal(t, "Bob", bob.Username)
	assert.Equal(t, "https://img/bob.webp", bob.AvatarURL)

	carol, _, err := c.ProfileView(uidCarol)
	require.NoError(t, err)
	assert.Equal(t, "Carol", carol.Username)
	assert.Equal(t, models.PlaceholderAvatar(uidCarol), carol.AvatarURL)
}

func TestAvatarPrecedence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// Stored avatar blob wins over the directory profile.
	blobs := storage.NewMemoryStore()
	seedProfiles(t, blobs, models.Profile{UserID: uidAlice, Username: "Alice", AvatarURL: "https://img/profile.webp"})
	raw, err := json.Marshal("https://img/stored.webp")
	require.NoError(t, err)
	require.NoError(t, blobs.Save(ctx, storage.AvatarKey(uidAlice), raw))

	c, _ := newTestCoordinator(t, blobs)
	own, err := c.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, "https://img/stored.webp", own.AvatarURL)

	// Without a stored blob the profile avatar stands.
	blobs2 := storage.NewMemoryStore()
	seedProfiles(t, blobs2, models.Profile{UserID: uidAlice, Username: "Alice", AvatarURL: "https://img/profile.webp"})
	c2, _ := newTestCoordinator(t, blobs2)
	own, err = c2.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, "https://img/profile.webp", own.AvatarURL)
}

func TestOnboardingFlagIsOneShot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	require.NoError(t, blobs.Save(ctx, storage.OnboardingKey(uidAlice), []byte("true")))

	c, _ := newTestCoordinator(t, blobs)
	assert.True(t, c.NeedsOnboarding())
	c.EndSession(ctx)

	// The flag was consumed on first evaluation.
	require.NoError(t, c.BeginSession(ctx, uidAlice, "Alice"))
	assert.False(t, c.NeedsOnboarding())
}

func TestOnboardingSkippedWhenAlreadyFollowing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	require.NoError(t, blobs.Save(ctx, storage.OnboardingKey(uidAlice), []byte("true")))
	alice := profile(uidAlice, "Alice")
	alice.Following = []string{uidBob}
	seedProfiles(t, blobs, alice, profile(uidBob, "Bob", uidAlice))

	c, _ := newTestCoordinator(t, blobs)
	assert.False(t, c.NeedsOnboarding())

	// Consumed regardless of the outcome.
	_, err := blobs.Load(ctx, storage.OnboardingKey(uidAlice))
	assert.ErrorIs(t, err, storage.ErrNoValue)
}

func TestAddPostRules(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t, storage.NewMemoryStore())
	ctx := context.Background()

	_, err := c.AddPost(ctx, "", "")
	assert.True(t, models.IsCode(err, models.CodeValidation))

	imgOnly, err := c.AddPost(ctx, "", "https://img/x.webp")
	require.NoError(t, err)
	assert.Empty(t, imgOnly.Content)

	text, err := c.AddPost(ctx, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "Alice", text.Username)

	feed, err := c.HomeFeed(false)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, text.ID, feed[0].ID, "newest post first")
}

func TestCommentOnMissingPost(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t, storage.NewMemoryStore())
	ctx := context.Background()

	_, err := c.AddComment(ctx, "nope", "hi")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	count, err := c.UnreadCount()
	require.NoError(t, err)
	assert.Zero(t, count, "a failed comment leaves no notification behind")
}

func TestSelfActionsProduceNoNotification(t *testing.T) {
	t.Parallel()

	c, _ := newTestCoordinator(t, storage.NewMemoryStore())
	ctx := context.Background()

	post, err := c.AddPost(ctx, "my own post", "")
	require.NoError(t, err)
	_, err = c.LikePost(ctx, post.ID)
	require.NoError(t, err)
	_, err = c.AddComment(ctx, post.ID, "self reply")
	require.NoError(t, err)
	_, err = c.ToggleFollow(ctx, uidAlice)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	got, err := c.Notifications()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFollowToggleParity(t *testing.T) {
	t.Parallel()

	blobs := storage.NewMemoryStore()
	seedProfiles(t, blobs, profile(uidBob, "Bob"))
	c, _ := newTestCoordinator(t, blobs)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		following, err := c.ToggleFollow(ctx, uidBob)
		require.NoError(t, err)

		own, err := c.CurrentUser()
		require.NoError(t, err)
		bob, _, err := c.ProfileView(uidBob)
		require.NoError(t, err)

		odd := i%2 == 0
		assert.Equal(t, odd, following)
		assert.Equal(t, odd, own.IsFollowing(uidBob))
		assert.Equal(t, odd, bob.HasFollower(uidAlice))
	}
}

func TestFollowNotifiesTargetAcrossSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	seedProfiles(t, blobs, profile(uidBob, "Bob"))

	c, _ := newTestCoordinator(t, blobs)
	_, err := c.ToggleFollow(ctx, uidBob)
	require.NoError(t, err)
	c.EndSession(ctx)

	// Bob signs in and finds the follow notification waiting.
	cb := NewCoordinator(blobs, newIdentityStub(), nil)
	require.NoError(t, cb.BeginSession(ctx, uidBob, "Bob"))
	got, err := cb.Notifications()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.NotificationFollow, got[0].Type)
	assert.Equal(t, uidAlice, got[0].ActorID)
	assert.False(t, got[0].Read)

	nav, err := cb.OpenNotification(ctx, got[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "profile", nav.Route)
	assert.Equal(t, uidAlice, nav.UserID)

	count, err := cb.UnreadCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRenamePropagatesEverywhere(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	posts := []models.Post{{
		ID: "p1", UserID: uidBob, Username: "Bob", Content: "bob's post",
		Timestamp: time.Now().UTC(),
		Comments: []models.Comment{
			{ID: "c1", UserID: uidAlice, Username: "OldName", Text: "from alice", Timestamp: time.Now().UTC()},
		},
	}}
	raw, err := json.Marshal(posts)
	require.NoError(t, err)
	require.NoError(t, blobs.Save(ctx, storage.KeyPosts, raw))

	c, idp := newTestCoordinator(t, blobs)
	_, err = c.AddPost(ctx, "alice's post", "")
	require.NoError(t, err)

	updated, err := c.UpdateProfile(ctx, store.ProfileUpdate{Username: "Alicia"})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Username)
	assert.Equal(t, "Alicia", idp.displayNames[uidAlice], "display name synced to identity provider")

	// No stale snapshot survives, on posts or on comments.
	feed, err := c.HomeFeed(false)
	require.NoError(t, err)
	for _, p := range feed {
		if p.UserID == uidAlice {
			assert.Equal(t, "Alicia", p.Username)
		}
		for _, cm := range p.Comments {
			if cm.UserID == uidAlice {
				assert.Equal(t, "Alicia", cm.Username)
			}
		}
	}

	_, err = c.UpdateProfile(ctx, store.ProfileUpdate{Username: ""})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestSearchSemantics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	seedProfiles(t, blobs, profile(uidBob, "Bob"), profile(uidCarol, "Carol"))
	c, _ := newTestCoordinator(t, blobs)

	_, err := c.AddPost(ctx, "Learning Go generics", "")
	require.NoError(t, err)

	// Discover mode: everyone but the caller, zero posts.
	discover, err := c.Search("   ")
	require.NoError(t, err)
	assert.Empty(t, discover.Posts)
	require.Len(t, discover.Profiles, 2)

	// Content match, case-insensitive.
	res, err := c.Search("GENERICS")
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.Empty(t, res.Profiles)

	// Username match, against profiles.
	res, err = c.Search("car")
	require.NoError(t, err)
	require.Len(t, res.Profiles, 1)
	assert.Equal(t, "Carol", res.Profiles[0].Username)
}

func TestSuggestedUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	seeded := []models.Profile{
		profile(uidBob, "Bob", uidCarol),
		profile(uidCarol, "Carol"),
	}
	for i := 0; i < 5; i++ {
		seeded = append(seeded, profile(fmt.Sprintf("extrauser%d", i), fmt.Sprintf("Extra%d", i)))
	}
	seedProfiles(t, blobs, seeded...)
	c, _ := newTestCoordinator(t, blobs)

	got, err := c.SuggestedUsers()
	require.NoError(t, err)
	require.Len(t, got, 5, "suggestions cap at five")
	assert.Equal(t, uidBob, got[0].UserID, "most followers ranks first")

	// Ranking is deterministic.
	again, err := c.SuggestedUsers()
	require.NoError(t, err)
	assert.Equal(t, got, again)

	// Followed users drop out.
	_, err = c.ToggleFollow(ctx, uidBob)
	require.NoError(t, err)
	got, err = c.SuggestedUsers()
	require.NoError(t, err)
	for _, p := range got {
		assert.NotEqual(t, uidBob, p.UserID)
	}
}

func TestFollowingOnlyFeed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	posts := []models.Post{
		{ID: "p1", UserID: uidBob, Username: "Bob", Content: "from bob", Timestamp: time.Now().UTC()},
		{ID: "p2", UserID: uidCarol, Username: "Carol", Content: "from carol", Timestamp: time.Now().UTC()},
	}
	raw, err := json.Marshal(posts)
	require.NoError(t, err)
	require.NoError(t, blobs.Save(ctx, storage.KeyPosts, raw))

	c, _ := newTestCoordinator(t, blobs)
	_, err = c.ToggleFollow(ctx, uidBob)
	require.NoError(t, err)
	own, err := c.AddPost(ctx, "mine", "")
	require.NoError(t, err)

	feed, err := c.HomeFeed(true)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, own.ID, feed[0].ID)
	assert.Equal(t, "p1", feed[1].ID)
}

func TestDeleteAccountLeavesNoResidue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	seedProfiles(t, blobs, profile(uidBob, "Bob"))

	c, idp := newTestCoordinator(t, blobs)
	post, err := c.AddPost(ctx, "to be deleted", "")
	require.NoError(t, err)
	_, err = c.ToggleFollow(ctx, uidBob)
	require.NoError(t, err)
	_ = post

	require.NoError(t, c.DeleteAccount(ctx))
	assert.Equal(t, []string{uidAlice}, idp.deleted)
	assert.Equal(t, StateUnauthenticated, c.State())

	// A fresh session over the same storage sees zero references to Alice.
	cb := NewCoordinator(blobs, newIdentityStub(), nil)
	require.NoError(t, cb.BeginSession(ctx, uidBob, "Bob"))

	feed, err := cb.HomeFeed(false)
	require.NoError(t, err)
	for _, p := range feed {
		assert.NotEqual(t, uidAlice, p.UserID)
		for _, cm := range p.Comments {
			assert.NotEqual(t, uidAlice, cm.UserID)
		}
	}
	bob, _, err := cb.ProfileView(uidBob)
	require.NoError(t, err)
	assert.NotContains(t, bob.Followers, uidAlice)
	assert.NotContains(t, bob.Following, uidAlice)
	got, err := cb.Notifications()
	require.NoError(t, err)
	for _, n := range got {
		assert.NotEqual(t, uidAlice, n.ActorID)
	}

	// The scrub reaches the persisted blob itself, not just this hydration.
	raw, err := blobs.Load(ctx, storage.NotificationsKey(uidBob))
	require.NoError(t, err)
	var persisted []models.Notification
	require.NoError(t, json.Unmarshal(raw, &persisted))
	for _, n := range persisted {
		assert.NotEqual(t, uidAlice, n.ActorID)
	}
}

func TestDeleteAccountReauthFailureKeepsPurge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	c, idp := newTestCoordinator(t, blobs)
	_, err := c.AddPost(ctx, "gone soon", "")
	require.NoError(t, err)

	idp.deleteErr = models.NewReauthRequiredError()
	err = c.DeleteAccount(ctx)
	assert.True(t, models.IsCode(err, models.CodeReauthRequired))

	// Local purge applied and the session ended despite the remote failure.
	assert.Equal(t, StateUnauthenticated, c.State())
	cb := NewCoordinator(blobs, newIdentityStub(), nil)
	require.NoError(t, cb.BeginSession(ctx, uidBob, "Bob"))
	feed, err := cb.HomeFeed(false)
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestStateSurvivesReload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	c, _ := newTestCoordinator(t, blobs)

	post, err := c.AddPost(ctx, "durable", "")
	require.NoError(t, err)
	_, err = c.AddComment(ctx, post.ID, "still here")
	require.NoError(t, err)
	_, err = c.LikePost(ctx, post.ID)
	require.NoError(t, err)
	before, err := c.HomeFeed(false)
	require.NoError(t, err)
	c.EndSession(ctx)

	c2 := NewCoordinator(blobs, newIdentityStub(), nil)
	require.NoError(t, c2.BeginSession(ctx, uidAlice, "Alice"))
	after, err := c2.HomeFeed(false)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, before[0].Likes, after[0].Likes)
	require.Len(t, after[0].Comments, 1)
	assert.Equal(t, "still here", after[0].Comments[0].Text)
	assert.True(t, before[0].Timestamp.Equal(after[0].Timestamp))
}

func TestLikeAndCommentNotifyAuthor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	longBody := "0123456789012345678901234567890123456789012345678901234567890123456789"
	posts := []models.Post{{
		ID: "p1", UserID: uidBob, Username: "Bob", Content: longBody, Timestamp: time.Now().UTC(),
	}}
	raw, err := json.Marshal(posts)
	require.NoError(t, err)
	require.NoError(t, blobs.Save(ctx, storage.KeyPosts, raw))

	c, _ := newTestCoordinator(t, blobs)
	_, err = c.LikePost(ctx, "p1")
	require.NoError(t, err)
	_, err = c.AddComment(ctx, "p1", "nice")
	require.NoError(t, err)
	c.Flush()

	// The entries went to Bob's persisted slice, not Alice's log view.
	own, err := c.Notifications()
	require.NoError(t, err)
	assert.Empty(t, own)

	cb := NewCoordinator(blobs, newIdentityStub(), nil)
	require.NoError(t, cb.BeginSession(ctx, uidBob, "Bob"))
	got, err := cb.Notifications()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.NotificationComment, got[0].Type, "newest first")
	assert.Equal(t, models.NotificationLike, got[1].Type)
	assert.Len(t, got[1].PostContentSample, models.PostSampleLen)
}
