package store

import (
	"sync"

	"agora/internal/models"
)

// NotificationLog holds notifications for every recipient, newest first.
// Recording is suppressed when the actor and the recipient are the same
// user: nobody is told about their own actions.
type NotificationLog struct {
	mu      sync.RWMutex
	entries []*models.Notification
}

// NewNotificationLog creates an empty log.
func NewNotificationLog() *NotificationLog {
	return &NotificationLog{}
}

// Replace swaps the log's contents wholesale. Used on hydration.
func (l *NotificationLog) Replace(entries []models.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]*models.Notification, len(entries))
	for i := range entries {
		n := entries[i]
		l.entries[i] = &n
	}
}

// Snapshot returns every entry in log order.
func (l *NotificationLog) Snapshot() []models.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Notification, len(l.entries))
	for i, n := range l.entries {
		out[i] = *n
	}
	return out
}

// Record prepends the notification unless it would tell the recipient about
// their own action. It returns true when the entry was stored.
func (l *NotificationLog) Record(n models.Notification) bool {
	if n.ActorID == n.RecipientID {
		return false
	}
	n.Read = false

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]*models.Notification{&n}, l.entries...)
	return true
}

// ForRecipient returns the recipient's notifications, newest first.
func (l *NotificationLog) ForRecipient(recipientID string) []models.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []models.Notification{}
	for _, n := range l.entries {
		if n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	return out
}

// UnreadCount returns how many of the recipient's notifications are unread.
func (l *NotificationLog) UnreadCount(recipientID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	count := 0
	for _, n := range l.entries {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count
}

// MarkRead marks one of the recipient's notifications as read and returns a
// copy of it.
func (l *NotificationLog) MarkRead(recipientID, notificationID string) (models.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range l.entries {
		if n.ID == notificationID && n.RecipientID == recipientID {
			n.Read = true
			return *n, nil
		}
	}
	return models.Notification{}, models.NewNotFoundError("notification", notificationID)
}

// MarkAllRead marks every notification for the recipient as read and
// returns how many flipped.
func (l *NotificationLog) MarkAllRead(recipientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	flipped := 0
	for _, n := range l.entries {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			flipped++
		}
	}
	return flipped
}

// PurgeForUser removes every entry where the user is the recipient or the
// actor. Called when an account is deleted.
func (l *NotificationLog) PurgeForUser(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.entries[:0]
	for _, n := range l.entries {
		if n.RecipientID == userID || n.ActorID == userID {
			continue
		}
		kept = append(kept, n)
	}
	l.entries = kept
}

// Len returns the number of stored entries across all recipients.
func (l *NotificationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
