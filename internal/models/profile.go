package models

import "fmt"

// ProfileSchemaVersion is stamped onto profiles when they are normalized.
// Records persisted by older builds carry a lower (or absent) version and
// are upgraded in place on load.
const ProfileSchemaVersion = 1

// Profile is the authoritative identity record for one user. Followers and
// Following are user-id sets kept mutually consistent: a is in b.Followers
// exactly when b is in a.Following.
type Profile struct {
	UserID        string   `json:"userId"`
	Username      string   `json:"username"`
	AvatarURL     string   `json:"avatarUrl"`
	Gender        string   `json:"gender"`
	Qualification string   `json:"qualification"`
	Country       string   `json:"country,omitempty"`
	Followers     []string `json:"followers"`
	Following     []string `json:"following"`
	Version       int      `json:"version"`
}

// Normalize repairs a profile loaded from persistence: nil edge sets become
// empty slices and the schema version is stamped.
func (p *Profile) Normalize() {
	if p.Followers == nil {
		p.Followers = []string{}
	}
	if p.Following == nil {
		p.Following = []string{}
	}
	p.Version = ProfileSchemaVersion
}

// IsFollowing reports whether this profile follows the given user.
func (p Profile) IsFollowing(userID string) bool {
	for _, id := range p.Following {
		if id == userID {
			return true
		}
	}
	return false
}

// HasFollower reports whether the given user follows this profile.
func (p Profile) HasFollower(userID string) bool {
	for _, id := range p.Followers {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() Profile {
	out := *p
	out.Followers = make([]string, len(p.Followers))
	copy(out.Followers, p.Followers)
	out.Following = make([]string, len(p.Following))
	copy(out.Following, p.Following)
	return out
}

// PlaceholderAvatar is the deterministic fallback avatar for a user with no
// stored or profile avatar.
func PlaceholderAvatar(userID string) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s/48", userID)
}

// AuthorSnapshot is the denormalized author identity embedded into posts and
// comments at write time.
type AuthorSnapshot struct {
	Username  string
	AvatarURL string
}
