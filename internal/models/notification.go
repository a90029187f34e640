package models

import "time"

// NotificationType enumerates the events that produce a notification.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
)

// PostSampleLen is how much of a post's content is copied into like/comment
// notifications.
const PostSampleLen = 50

// Notification is a derived event record. Actor fields are snapshots taken
// at event time, so later profile edits do not rewrite history. A
// notification is never created when the actor is also the recipient.
type Notification struct {
	ID                string           `json:"id"`
	RecipientID       string           `json:"recipientId"`
	ActorID           string           `json:"actorId"`
	ActorUsername     string           `json:"actorUsername"`
	ActorAvatarURL    string           `json:"actorAvatarUrl"`
	Type              NotificationType `json:"type"`
	PostID            string           `json:"postId,omitempty"`
	PostContentSample string           `json:"postContentSample,omitempty"`
	Read              bool             `json:"read"`
	Timestamp         time.Time        `json:"timestamp"`
}

// SampleContent truncates post content for embedding in a notification.
func SampleContent(content string) string {
	runes := []rune(content)
	if len(runes) <= PostSampleLen {
		return content
	}
	return string(runes[:PostSampleLen])
}
