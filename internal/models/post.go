package models

import "time"

// Comment is a reply owned by exactly one post. It carries a denormalized
// author username; it cannot outlive its parent post.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Post is a user-authored feed item. Username and AvatarURL are snapshots of
// the author's identity at creation time. Comments are kept in insertion
// order, which is chronological.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatarUrl"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Comments  []Comment `json:"comments"`
	Likes     int       `json:"likes"`
	Shares    int       `json:"shares"`
}

// Clone returns a deep copy of the post. Stores hand out clones so callers
// can never mutate store-owned state.
func (p *Post) Clone() Post {
	out := *p
	out.Comments = make([]Comment, len(p.Comments))
	copy(out.Comments, p.Comments)
	return out
}
