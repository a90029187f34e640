package service

import (
	"sort"
	"strings"

	"agora/internal/models"
)

// Derived views are recomputed from current store contents on every read.
// Nothing here mutates state.

// HomeFeed returns all posts newest first. With followingOnly set, the feed
// is narrowed to posts by the owner and the people they follow.
func (c *Coordinator) HomeFeed(followingOnly bool) ([]models.Post, error) {
	userID, err := c.ready()
	if err != nil {
		return nil, err
	}
	all := c.posts.List()
	if !followingOnly {
		return all, nil
	}

	own, err := c.profiles.Get(userID)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]struct{}, len(own.Following)+1)
	allowed[userID] = struct{}{}
	for _, id := range own.Following {
		allowed[id] = struct{}{}
	}
	out := []models.Post{}
	for _, p := range all {
		if _, ok := allowed[p.UserID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// SearchResults is the combined outcome of one search query.
type SearchResults struct {
	Posts    []models.Post    `json:"posts"`
	Profiles []models.Profile `json:"profiles"`
}

// Search matches the trimmed query case-insensitively against post content,
// post author username, and profile username. An empty query is discover
// mode: every profile except the caller, and no posts.
func (c *Coordinator) Search(query string) (SearchResults, error) {
	userID, err := c.ready()
	if err != nil {
		return SearchResults{}, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return SearchResults{
			Posts:    []models.Post{},
			Profiles: c.profiles.All(userID),
		}, nil
	}

	profiles := []models.Profile{}
	for _, p := range c.profiles.All(userID) {
		if strings.Contains(strings.ToLower(p.Username), q) {
			profiles = append(profiles, p)
		}
	}
	return SearchResults{
		Posts:    c.posts.Search(q),
		Profiles: profiles,
	}, nil
}

// SuggestedUsers returns up to five profiles the owner does not follow yet,
// ranked by follower count with user id as the tie break, so the ordering
// is reproducible.
func (c *Coordinator) SuggestedUsers() ([]models.Profile, error) {
	userID, err := c.ready()
	if err != nil {
		return nil, err
	}
	own, err := c.profiles.Get(userID)
	if err != nil {
		return nil, err
	}

	exclude := append([]string{userID}, own.Following...)
	candidates := c.profiles.All(exclude...)
	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].Followers) != len(candidates[j].Followers) {
			return len(candidates[i].Followers) > len(candidates[j].Followers)
		}
		return candidates[i].UserID < candidates[j].UserID
	})
	if len(candidates) > 5 {
		candidates = candidates[:5]
	}
	return candidates, nil
}

// Notifications returns the owner's notifications, newest first.
func (c *Coordinator) Notifications() ([]models.Notification, error) {
	userID, err := c.ready()
	if err != nil {
		return nil, err
	}
	return c.notifications.ForRecipient(userID), nil
}

// UnreadCount returns how many of the owner's notifications are unread.
func (c *Coordinator) UnreadCount() (int, error) {
	userID, err := c.ready()
	if err != nil {
		return 0, err
	}
	return c.notifications.UnreadCount(userID), nil
}

// ProfileView returns a profile together with that user's posts.
func (c *Coordinator) ProfileView(userID string) (models.Profile, []models.Post, error) {
	if _, err := c.ready(); err != nil {
		return models.Profile{}, nil, err
	}
	profile, err := c.profiles.Get(userID)
	if err != nil {
		return models.Profile{}, nil, err
	}
	return profile, c.posts.ByUser(userID), nil
}

// CurrentUser returns the session owner's profile.
func (c *Coordinator) CurrentUser() (models.Profile, error) {
	userID, err := c.ready()
	if err != nil {
		return models.Profile{}, err
	}
	return c.profiles.Get(userID)
}
