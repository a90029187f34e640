package store

import (
	"strings"
	"sync"

	"agora/internal/models"
)

// PostStore holds every post in the system, newest first. Comments live
// inside their parent post and are never addressed independently.
type PostStore struct {
	mu    sync.RWMutex
	posts []*models.Post
}

// NewPostStore creates an empty post store.
func NewPostStore() *PostStore {
	return &PostStore{}
}

// Replace swaps the store's contents wholesale. Used on hydration; the
// incoming order is preserved.
func (s *PostStore) Replace(posts []models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = make([]*models.Post, len(posts))
	for i := range posts {
		p := posts[i].Clone()
		if p.Comments == nil {
			p.Comments = []models.Comment{}
		}
		s.posts[i] = &p
	}
}

// Snapshot returns every post in feed order.
func (s *PostStore) Snapshot() []models.Post {
	return s.List()
}

// Add validates and prepends a post, so the newest post is always first.
// Content is stored trimmed; whitespace alone does not count as content.
func (s *PostStore) Add(post models.Post) (models.Post, error) {
	post.Content = strings.TrimSpace(post.Content)
	if post.Content == "" && post.ImageURL == "" {
		return models.Post{}, models.NewValidationError("post needs content or an image")
	}
	cp := post.Clone()
	if cp.Comments == nil {
		cp.Comments = []models.Comment{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append([]*models.Post{&cp}, s.posts...)
	return cp.Clone(), nil
}

// Get returns a copy of the post with the given id.
func (s *PostStore) Get(postID string) (models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.find(postID)
	if p == nil {
		return models.Post{}, models.NewNotFoundError("post", postID)
	}
	return p.Clone(), nil
}

// AddComment appends the comment to the post's reply list and returns the
// updated post.
func (s *PostStore) AddComment(postID string, comment models.Comment) (models.Post, error) {
	comment.Text = strings.TrimSpace(comment.Text)
	if comment.Text == "" {
		return models.Post{}, models.NewValidationError("comment text is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.find(postID)
	if p == nil {
		return models.Post{}, models.NewNotFoundError("post", postID)
	}
	p.Comments = append(p.Comments, comment)
	return p.Clone(), nil
}

// Like increments the post's like counter and returns the updated post.
// Repeat likes from the same user keep counting; there is no per-user
// dedupe ledger.
func (s *PostStore) Like(postID string) (models.Post, error) {
	return s.bump(postID, func(p *models.Post) { p.Likes++ })
}

// Share increments the post's share counter and returns the updated post.
func (s *PostStore) Share(postID string) (models.Post, error) {
	return s.bump(postID, func(p *models.Post) { p.Shares++ })
}

func (s *PostStore) bump(postID string, fn func(*models.Post)) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.find(postID)
	if p == nil {
		return models.Post{}, models.NewNotFoundError("post", postID)
	}
	fn(p)
	return p.Clone(), nil
}

// List returns all posts in feed order, newest first.
func (s *PostStore) List() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Clone()
	}
	return out
}

// ByUser returns the given author's posts in feed order.
func (s *PostStore) ByUser(userID string) []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Post{}
	for _, p := range s.posts {
		if p.UserID == userID {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Search returns posts whose content or author username contains the query,
// case-insensitively. An empty query matches nothing.
func (s *PostStore) Search(query string) []models.Post {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.Post{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Post{}
	for _, p := range s.posts {
		if strings.Contains(strings.ToLower(p.Content), q) ||
			strings.Contains(strings.ToLower(p.Username), q) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// PropagateAuthorIdentity rewrites the denormalized author snapshot on every
// post and comment owned by the user. Empty snapshot fields leave the
// corresponding stored field untouched.
func (s *PostStore) PropagateAuthorIdentity(userID string, snap models.AuthorSnapshot) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := 0
	for _, p := range s.posts {
		changed := false
		if p.UserID == userID {
			if snap.Username != "" && p.Username != snap.Username {
				p.Username = snap.Username
				changed = true
			}
			if snap.AvatarURL != "" && p.AvatarURL != snap.AvatarURL {
				p.AvatarURL = snap.AvatarURL
				changed = true
			}
		}
		for i := range p.Comments {
			if p.Comments[i].UserID == userID && snap.Username != "" && p.Comments[i].Username != snap.Username {
				p.Comments[i].Username = snap.Username
				changed = true
			}
		}
		if changed {
			touched++
		}
	}
	return touched
}

// RemoveUserContent deletes every post authored by the user and every
// comment they left on other users' posts.
func (s *PostStore) RemoveUserContent(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.posts[:0]
	for _, p := range s.posts {
		if p.UserID == userID {
			continue
		}
		comments := p.Comments[:0]
		for _, c := range p.Comments {
			if c.UserID != userID {
				comments = append(comments, c)
			}
		}
		p.Comments = comments
		kept = append(kept, p)
	}
	s.posts = kept
}

// Len returns the number of stored posts.
func (s *PostStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// find must be called with the lock held.
func (s *PostStore) find(postID string) *models.Post {
	for _, p := range s.posts {
		if p.ID == postID {
			return p
		}
	}
	return nil
}
