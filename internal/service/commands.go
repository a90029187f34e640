package service

import (
	"context"
	"log/slog"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/storage"
	"agora/internal/store"
)

// AddPost creates a post authored by the session owner and prepends it to
// the feed. Content and image cannot both be empty; image upload, when
// used, happens before this call so imageURL is already a final URL.
func (c *Coordinator) AddPost(ctx context.Context, content, imageURL string) (models.Post, error) {
	userID, err := c.ready()
	if err != nil {
		return models.Post{}, err
	}
	author, err := c.profiles.Get(userID)
	if err != nil {
		return models.Post{}, err
	}

	post, err := c.posts.Add(models.Post{
		ID:        c.newID(),
		UserID:    userID,
		Username:  author.Username,
		AvatarURL: author.AvatarURL,
		Content:   content,
		ImageURL:  imageURL,
		Timestamp: c.now().UTC(),
	})
	observability.ObserveCommand("add_post", err)
	if err != nil {
		return models.Post{}, err
	}
	c.persistPosts(ctx)
	return post, nil
}

// AddComment appends a comment to the post and notifies the post's author.
func (c *Coordinator) AddComment(ctx context.Context, postID, text string) (models.Post, error) {
	userID, err := c.ready()
	if err != nil {
		return models.Post{}, err
	}
	author, err := c.profiles.Get(userID)
	if err != nil {
		return models.Post{}, err
	}

	updated, err := c.posts.AddComment(postID, models.Comment{
		ID:        c.newID(),
		UserID:    userID,
		Username:  author.Username,
		Text:      text,
		Timestamp: c.now().UTC(),
	})
	observability.ObserveCommand("add_comment", err)
	if err != nil {
		return models.Post{}, err
	}

	c.recordNotification(ctx, author, updated.UserID, models.Notification{
		Type:              models.NotificationComment,
		PostID:            updated.ID,
		PostContentSample: models.SampleContent(updated.Content),
	})
	c.persistPosts(ctx)
	return updated, nil
}

// LikePost increments the post's like counter and notifies its author.
// Repeat likes keep counting.
func (c *Coordinator) LikePost(ctx context.Context, postID string) (models.Post, error) {
	userID, err := c.ready()
	if err != nil {
		return models.Post{}, err
	}

	updated, err := c.posts.Like(postID)
	observability.ObserveCommand("like_post", err)
	if err != nil {
		return models.Post{}, err
	}

	if actor, perr := c.profiles.Get(userID); perr == nil {
		c.recordNotification(ctx, actor, updated.UserID, models.Notification{
			Type:              models.NotificationLike,
			PostID:            updated.ID,
			PostContentSample: models.SampleContent(updated.Content),
		})
	}
	c.persistPosts(ctx)
	return updated, nil
}

// SharePost increments the post's share counter. Shares produce no
// notification.
func (c *Coordinator) SharePost(ctx context.Context, postID string) (models.Post, error) {
	if _, err := c.ready(); err != nil {
		return models.Post{}, err
	}
	updated, err := c.posts.Share(postID)
	observability.ObserveCommand("share_post", err)
	if err != nil {
		return models.Post{}, err
	}
	c.persistPosts(ctx)
	return updated, nil
}

// ToggleFollow flips the follow edge from the session owner to the target
// and notifies the target on a new follow. A target known only through
// authored posts gets a profile synthesized from its latest post's author
// snapshot.
func (c *Coordinator) ToggleFollow(ctx context.Context, targetID string) (bool, error) {
	userID, err := c.ready()
	if err != nil {
		return false, err
	}

	var hint models.AuthorSnapshot
	if posts := c.posts.ByUser(targetID); len(posts) > 0 {
		hint = models.AuthorSnapshot{Username: posts[0].Username, AvatarURL: posts[0].AvatarURL}
	}

	following, err := c.profiles.ToggleFollow(userID, targetID, hint)
	observability.ObserveCommand("toggle_follow", err)
	if err != nil {
		return false, err
	}

	if following {
		if actor, perr := c.profiles.Get(userID); perr == nil {
			c.recordNotification(ctx, actor, targetID, models.Notification{
				Type: models.NotificationFollow,
			})
		}
	}
	c.persistProfiles(ctx)
	return following, nil
}

// UpdateProfile merges the edit into the owner's profile and fans the new
// identity out to every post and comment they authored, in the same
// operation. The local update is applied optimistically; the identity
// provider's display name is synced afterwards and a sync failure leaves
// the local state standing.
func (c *Coordinator) UpdateProfile(ctx context.Context, upd store.ProfileUpdate) (models.Profile, error) {
	userID, err := c.ready()
	if err != nil {
		return models.Profile{}, err
	}
	if upd.Username == "" {
		err := models.NewValidationError("username is required")
		observability.ObserveCommand("update_profile", err)
		return models.Profile{}, err
	}

	updated, err := c.profiles.Update(userID, upd)
	observability.ObserveCommand("update_profile", err)
	if err != nil {
		return models.Profile{}, err
	}
	c.posts.PropagateAuthorIdentity(userID, models.AuthorSnapshot{
		Username:  updated.Username,
		AvatarURL: updated.AvatarURL,
	})

	if c.identity != nil {
		if syncErr := c.identity.SetDisplayName(ctx, userID, updated.Username); syncErr != nil {
			c.logger.WarnContext(ctx, "display name sync failed",
				slog.String("error", syncErr.Error()))
		}
	}

	c.persistProfiles(ctx)
	c.persistPosts(ctx)
	return updated, nil
}

// UpdateAvatar stores the new avatar URL for the owner and repairs the
// denormalized snapshot on their posts.
func (c *Coordinator) UpdateAvatar(ctx context.Context, avatarURL string) (models.Profile, error) {
	userID, err := c.ready()
	if err != nil {
		return models.Profile{}, err
	}
	if avatarURL == "" {
		err := models.NewValidationError("avatar url is required")
		observability.ObserveCommand("update_avatar", err)
		return models.Profile{}, err
	}

	updated, err := c.profiles.SetAvatar(userID, avatarURL)
	observability.ObserveCommand("update_avatar", err)
	if err != nil {
		return models.Profile{}, err
	}
	c.posts.PropagateAuthorIdentity(userID, models.AuthorSnapshot{AvatarURL: avatarURL})

	c.saveJSON(ctx, storage.AvatarKey(userID), avatarURL)
	c.persistProfiles(ctx)
	c.persistPosts(ctx)
	return updated, nil
}

// MarkNotificationRead flips one of the owner's notifications to read.
func (c *Coordinator) MarkNotificationRead(ctx context.Context, notificationID string) error {
	userID, err := c.ready()
	if err != nil {
		return err
	}
	_, err = c.notifications.MarkRead(userID, notificationID)
	observability.ObserveCommand("mark_notification_read", err)
	if err != nil {
		return err
	}
	c.persistOwnNotifications(ctx)
	return nil
}

// MarkAllNotificationsRead flips every unread notification for the owner.
func (c *Coordinator) MarkAllNotificationsRead(ctx context.Context) error {
	userID, err := c.ready()
	if err != nil {
		return err
	}
	c.notifications.MarkAllRead(userID)
	observability.ObserveCommand("mark_all_notifications_read", nil)
	c.persistOwnNotifications(ctx)
	return nil
}

// NavTarget tells the UI where a clicked notification leads.
type NavTarget struct {
	Route  string `json:"route"` // "profile" or "home"
	UserID string `json:"userId,omitempty"`
	PostID string `json:"postId,omitempty"`
}

// OpenNotification marks the notification read and returns the navigation
// target: the actor's profile for follows, the home feed otherwise.
func (c *Coordinator) OpenNotification(ctx context.Context, notificationID string) (NavTarget, error) {
	userID, err := c.ready()
	if err != nil {
		return NavTarget{}, err
	}
	n, err := c.notifications.MarkRead(userID, notificationID)
	observability.ObserveCommand("open_notification", err)
	if err != nil {
		return NavTarget{}, err
	}
	c.persistOwnNotifications(ctx)

	if n.Type == models.NotificationFollow {
		return NavTarget{Route: "profile", UserID: n.ActorID}, nil
	}
	return NavTarget{Route: "home", PostID: n.PostID}, nil
}

// DeleteAccount runs the two-phase account deletion. Phase one purges all
// local state for the owner, including entries the owner left as actor in
// other users' persisted notification logs, and always applies. Phase two asks the
// identity provider to destroy the account; its failure does not roll back
// the purge, and a reauthentication demand is surfaced distinctly so the
// caller can finish the deletion after signing in again. The session ends
// either way.
func (c *Coordinator) DeleteAccount(ctx context.Context) error {
	userID, err := c.ready()
	if err != nil {
		return err
	}

	var others []string
	for _, p := range c.profiles.Snapshot() {
		if p.UserID != userID {
			others = append(others, p.UserID)
		}
	}

	c.posts.RemoveUserContent(userID)
	c.profiles.RemoveUser(userID)
	c.notifications.PurgeForUser(userID)

	c.persistPosts(ctx)
	c.persistProfiles(ctx)
	c.saveJSON(ctx, storage.NotificationsKey(userID), []models.Notification{})
	c.scrubActorFromRecipientBlobs(ctx, userID, others)
	c.Flush()
	for _, key := range []string{
		storage.NotificationsKey(userID),
		storage.AvatarKey(userID),
		storage.OnboardingKey(userID),
	} {
		if rmErr := c.blobs.Remove(ctx, key); rmErr != nil {
			c.logger.WarnContext(ctx, "removing user blob failed",
				slog.String("key", key), slog.String("error", rmErr.Error()))
		}
	}

	var remoteErr error
	if c.identity != nil {
		remoteErr = c.identity.DeleteCurrentUser(ctx, userID)
	}
	observability.ObserveCommand("delete_account", remoteErr)

	c.mu.Lock()
	c.reset()
	c.mu.Unlock()
	observability.SessionsActive.Dec()

	if remoteErr != nil {
		c.logger.WarnContext(ctx, "remote account deletion failed",
			slog.String("user_id", userID), slog.String("error", remoteErr.Error()))
		return remoteErr
	}
	return nil
}

// recordNotification snapshots the actor, records the entry unless it would
// be a self-notification, and pushes it to the recipient.
func (c *Coordinator) recordNotification(ctx context.Context, actor models.Profile, recipientID string, n models.Notification) {
	n.ID = c.newID()
	n.RecipientID = recipientID
	n.ActorID = actor.UserID
	n.ActorUsername = actor.Username
	n.ActorAvatarURL = actor.AvatarURL
	n.Timestamp = c.now().UTC()

	if !c.notifications.Record(n) {
		return
	}
	observability.NotificationsRecorded.WithLabelValues(string(n.Type)).Inc()
	c.persistNotificationFor(ctx, n)

	if c.events != nil {
		bg := context.WithoutCancel(ctx)
		c.enqueue(func() {
			if err := c.events.Publish(bg, n); err != nil {
				c.logger.WarnContext(bg, "notification push failed",
					slog.String("error", err.Error()))
			}
		})
	}
}
