package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/models"
)

func newProfile(id, username string) models.Profile {
	return models.Profile{
		UserID:    id,
		Username:  username,
		AvatarURL: models.PlaceholderAvatar(id),
		Followers: []string{},
		Following: []string{},
		Version:   models.ProfileSchemaVersion,
	}
}

func TestProfileDirectoryEnsure(t *testing.T) {
	t.Parallel()

	dir := NewProfileDirectory()

	first := dir.Ensure(models.Profile{UserID: "alice1", Username: "Alice"})
	assert.Equal(t, "Alice", first.Username)
	assert.NotNil(t, first.Followers)
	assert.Equal(t, models.PlaceholderAvatar("alice1"), first.AvatarURL)

	// A second Ensure never clobbers the stored record.
	again := dir.Ensure(models.Profile{UserID: "alice1", Username: "Imposter"})
	assert.Equal(t, "Alice", again.Username)
	assert.Equal(t, 1, dir.Len())
}

func TestProfileDirectoryUpdate(t *testing.T) {
	t.Parallel()

	dir := NewProfileDirectory()
	dir.Ensure(newProfile("alice1", "Alice"))

	updated, err := dir.Update("alice1", ProfileUpdate{Username: "Alicia", Country: "NZ"})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Username)
	assert.Equal(t, "NZ", updated.Country)
	// Empty fields leave stored values alone.
	assert.Equal(t, models.PlaceholderAvatar("alice1"), updated.AvatarURL)

	_, err = dir.Update("nobody", ProfileUpdate{Username: "x"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestToggleFollow(t *testing.T) {
	t.Parallel()

	dir := NewProfileDirectory()
	dir.Ensure(newProfile("alice1", "Alice"))
	dir.Ensure(newProfile("bob1", "Bob"))

	following, err := dir.ToggleFollow("alice1", "bob1", models.AuthorSnapshot{})
	require.NoError(t, err)
	assert.True(t, following)

	alice, err := dir.Get("alice1")
	require.NoError(t, err)
	bob, err := dir.Get("bob1")
	require.NoError(t, err)
	assert.True(t, alice.IsFollowing("bob1"))
	assert.True(t, bob.HasFollower("alice1"))

	// Toggling again removes both sides of the edge.
	following, err = dir.ToggleFollow("alice1", "bob1", models.AuthorSnapshot{})
	require.NoError(t, err)
	assert.False(t, following)

	alice, _ = dir.Get("alice1")
	bob, _ = dir.Get("bob1")
	assert.False(t, alice.IsFollowing("bob1"))
	assert.False(t, bob.HasFollower("alice1"))
}

func TestToggleFollowSynthesizesTarget(t *testing.T) {
	t.Parallel()

	dir := NewProfileDirectory()
	dir.Ensure(newProfile("alice1", "Alice"))

	following, err := dir.ToggleFollow("alice1", "ghost1", models.AuthorSnapshot{Username: "Ghost"})
	require.NoError(t, err)
	assert.True(t, following)

	ghost, err := dir.Get("ghost1")
	require.NoError(t, err)
	assert.Equal(t, "Ghost", ghost.Username)
	assert.Equal(t, models.PlaceholderAvatar("ghost1"), ghost.AvatarURL)
	assert.Equal(t, []string{"alice1"}, ghost.Followers)
}

func TestToggleFollowSelf(t *testing.T) {
	t.Parallel()

	dir := NewProfileDirectory()
	dir.Ensure(newProfile("alice1", "Alice"))

	_, err := dir.ToggleFollow("alice1", "alice1", models.AuthorSnapshot{})
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestRemoveUserStripsEdges(t *testing.T) {
	t.Parallel()

	dir := NewProfileDirectory()
	dir.Ensure(newProfile("alice1", "Alice"))
	dir.Ensure(newProfile("bob1", "Bob"))
	dir.Ensure(newProfile("carol1", "Carol"))

	_, err := dir.ToggleFollow("alice1", "bob1", models.AuthorSnapshot{})
	require.NoError(t, err)
	_, err = dir.ToggleFollow("carol1", "alice1", models.AuthorSnapshot{})
	require.NoError(t, err)

	dir.RemoveUser("alice1")

	assert.False(t, dir.Has("alice1"))
	bob, _ := dir.Get("bob1")
	carol, _ := dir.Get("carol1")
	assert.Empty(t, bob.Followers)
	assert.Empty(t, carol.Following)
}

func TestAllExcludesAndSorts(t *testing.T) {
	t.Parallel()

	dir := NewProfileDirectory()
	dir.Ensure(newProfile("bob1", "Bob"))
	dir.Ensure(newProfile("alice1", "Alice"))
	dir.Ensure(newProfile("carol1", "Carol"))

	all := dir.All("bob1")
	require.Len(t, all, 2)
	assert.Equal(t, "Alice", all[0].Username)
	assert.Equal(t, "Carol", all[1].Username)
}
