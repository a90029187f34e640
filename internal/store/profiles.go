// Package store holds the in-memory collections behind a session: profiles,
// posts, and notifications. Stores own their data; every read hands out
// copies and every write happens under the store's lock.
package store

import (
	"sort"
	"sync"

	"agora/internal/models"
)

// ProfileDirectory is the authoritative set of known user profiles, keyed by
// user id.
type ProfileDirectory struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
}

// NewProfileDirectory creates an empty directory.
func NewProfileDirectory() *ProfileDirectory {
	return &ProfileDirectory{profiles: make(map[string]*models.Profile)}
}

// Replace swaps the directory's contents wholesale. Used on hydration.
func (d *ProfileDirectory) Replace(profiles []models.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles = make(map[string]*models.Profile, len(profiles))
	for i := range profiles {
		p := profiles[i].Clone()
		p.Normalize()
		d.profiles[p.UserID] = &p
	}
}

// Snapshot returns every profile, sorted by user id for stable persistence.
func (d *ProfileDirectory) Snapshot() []models.Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Get returns a copy of the profile for the given user id.
func (d *ProfileDirectory) Get(userID string) (models.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[userID]
	if !ok {
		return models.Profile{}, models.NewNotFoundError("profile", userID)
	}
	return p.Clone(), nil
}

// Has reports whether a profile exists for the given user id.
func (d *ProfileDirectory) Has(userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.profiles[userID]
	return ok
}

// Ensure inserts the profile if no record exists for its user id. The
// existing record wins when one is present; Ensure never overwrites. It
// returns the record now in the directory.
func (d *ProfileDirectory) Ensure(p models.Profile) models.Profile {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.profiles[p.UserID]; ok {
		return existing.Clone()
	}
	cp := p.Clone()
	cp.Normalize()
	if cp.AvatarURL == "" {
		cp.AvatarURL = models.PlaceholderAvatar(cp.UserID)
	}
	d.profiles[cp.UserID] = &cp
	return cp.Clone()
}

// ProfileUpdate carries the editable fields of a profile. Empty strings mean
// "leave unchanged".
type ProfileUpdate struct {
	Username      string
	AvatarURL     string
	Gender        string
	Qualification string
	Country       string
}

// Update merges the non-empty fields of upd into the stored profile and
// returns the result.
func (d *ProfileDirectory) Update(userID string, upd ProfileUpdate) (models.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[userID]
	if !ok {
		return models.Profile{}, models.NewNotFoundError("profile", userID)
	}
	if upd.Username != "" {
		p.Username = upd.Username
	}
	if upd.AvatarURL != "" {
		p.AvatarURL = upd.AvatarURL
	}
	if upd.Gender != "" {
		p.Gender = upd.Gender
	}
	if upd.Qualification != "" {
		p.Qualification = upd.Qualification
	}
	if upd.Country != "" {
		p.Country = upd.Country
	}
	return p.Clone(), nil
}

// SetAvatar overwrites the stored avatar URL for the user.
func (d *ProfileDirectory) SetAvatar(userID, avatarURL string) (models.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[userID]
	if !ok {
		return models.Profile{}, models.NewNotFoundError("profile", userID)
	}
	p.AvatarURL = avatarURL
	return p.Clone(), nil
}

// ToggleFollow flips the follow edge from actorID to targetID, keeping both
// sides of the edge consistent. When the target profile is unknown, a stub
// is synthesized from the given snapshot so the edge has somewhere to land.
// It returns the resulting state: true when actor now follows target.
func (d *ProfileDirectory) ToggleFollow(actorID, targetID string, stub models.AuthorSnapshot) (bool, error) {
	if actorID == targetID {
		return false, models.NewValidationError("cannot follow yourself")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	actor, ok := d.profiles[actorID]
	if !ok {
		return false, models.NewNotFoundError("profile", actorID)
	}
	target, ok := d.profiles[targetID]
	if !ok {
		username := stub.Username
		if username == "" {
			username = targetID
		}
		avatar := stub.AvatarURL
		if avatar == "" {
			avatar = models.PlaceholderAvatar(targetID)
		}
		target = &models.Profile{
			UserID:    targetID,
			Username:  username,
			AvatarURL: avatar,
			Followers: []string{},
			Following: []string{},
			Version:   models.ProfileSchemaVersion,
		}
		d.profiles[targetID] = target
	}

	if actor.IsFollowing(targetID) {
		actor.Following = removeID(actor.Following, targetID)
		target.Followers = removeID(target.Followers, actorID)
		return false, nil
	}
	actor.Following = append(actor.Following, targetID)
	target.Followers = append(target.Followers, actorID)
	return true, nil
}

// RemoveUser deletes the user's profile and strips every follow edge that
// references them from the remaining profiles.
func (d *ProfileDirectory) RemoveUser(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.profiles, userID)
	for _, p := range d.profiles {
		p.Followers = removeID(p.Followers, userID)
		p.Following = removeID(p.Following, userID)
	}
}

// All returns every profile except those in the exclude set, sorted by
// username then user id.
func (d *ProfileDirectory) All(exclude ...string) []models.Profile {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		if _, ok := skip[p.UserID]; ok {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Len returns the number of stored profiles.
func (d *ProfileDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.profiles)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
