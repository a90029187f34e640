package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/storage"
)

// Persistence mirrors store contents to the blob backend after each
// mutation. The snapshot is taken synchronously so the caller's mutation is
// captured; the write itself is handed to a single background worker, which
// keeps writes to the same key in command order without blocking callers. A
// crash before a write lands loses only that delta.

const persistQueueSize = 256

func (c *Coordinator) runPersistWorker() {
	for {
		select {
		case op := <-c.persistOps:
			op()
			c.persistWG.Done()
		case <-c.persistQuit:
			return
		}
	}
}

// Close stops the background persistence worker after draining it. The
// coordinator must not be used afterwards.
func (c *Coordinator) Close() {
	c.Flush()
	close(c.persistQuit)
}

func (c *Coordinator) enqueue(op func()) {
	c.persistWG.Add(1)
	c.persistOps <- op
}

func (c *Coordinator) persistPosts(ctx context.Context) {
	c.saveJSON(ctx, storage.KeyPosts, c.posts.Snapshot())
}

func (c *Coordinator) persistProfiles(ctx context.Context) {
	byID := make(map[string]models.Profile)
	for _, p := range c.profiles.Snapshot() {
		byID[p.UserID] = p
	}
	c.saveJSON(ctx, storage.KeyProfiles, byID)
}

// persistOwnNotifications writes the session owner's notification slice.
func (c *Coordinator) persistOwnNotifications(ctx context.Context) {
	c.mu.Lock()
	owner := c.userID
	c.mu.Unlock()
	if owner == "" {
		return
	}
	c.saveJSON(ctx, storage.NotificationsKey(owner), c.notifications.ForRecipient(owner))
}

// persistNotificationFor appends a freshly recorded notification to its
// recipient's persisted slice. The session owner's slice is rewritten from
// the in-memory log; any other recipient's blob is read-modify-written,
// since their log lives in their own future session.
func (c *Coordinator) persistNotificationFor(ctx context.Context, n models.Notification) {
	c.mu.Lock()
	owner := c.userID
	c.mu.Unlock()

	if n.RecipientID == owner {
		c.persistOwnNotifications(ctx)
		return
	}

	key := storage.NotificationsKey(n.RecipientID)
	bg := context.WithoutCancel(ctx)
	c.enqueue(func() {
		existing := []models.Notification{}
		if raw, err := c.blobs.Load(bg, key); err == nil {
			if jsonErr := json.Unmarshal(raw, &existing); jsonErr != nil {
				existing = []models.Notification{}
			}
		}
		merged := append([]models.Notification{n}, existing...)
		raw, err := json.Marshal(merged)
		if err != nil {
			c.logger.ErrorContext(bg, "encoding notifications failed", slog.String("error", err.Error()))
			return
		}
		if err := c.blobs.Save(bg, key, raw); err != nil {
			observability.PersistErrors.WithLabelValues(key).Inc()
			c.logger.ErrorContext(bg, "persisting notifications failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	})
}

// scrubActorFromRecipientBlobs rewrites other users' persisted notification
// slices with every entry by the given actor removed. Appends and scrubs
// share the persist worker, so a scrub enqueued after an append always sees
// the appended entry.
func (c *Coordinator) scrubActorFromRecipientBlobs(ctx context.Context, actorID string, recipientIDs []string) {
	bg := context.WithoutCancel(ctx)
	for _, recipientID := range recipientIDs {
		key := storage.NotificationsKey(recipientID)
		c.enqueue(func() {
			raw, err := c.blobs.Load(bg, key)
			if err != nil {
				return
			}
			var existing []models.Notification
			if err := json.Unmarshal(raw, &existing); err != nil {
				return
			}
			kept := existing[:0]
			for _, n := range existing {
				if n.ActorID != actorID {
					kept = append(kept, n)
				}
			}
			if len(kept) == len(existing) {
				return
			}
			out, err := json.Marshal(kept)
			if err != nil {
				c.logger.ErrorContext(bg, "encoding notifications failed", slog.String("error", err.Error()))
				return
			}
			if err := c.blobs.Save(bg, key, out); err != nil {
				observability.PersistErrors.WithLabelValues(key).Inc()
				c.logger.ErrorContext(bg, "persisting notifications failed",
					slog.String("key", key), slog.String("error", err.Error()))
			}
		})
	}
}

func (c *Coordinator) saveJSON(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.ErrorContext(ctx, "encoding blob failed",
			slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	bg := context.WithoutCancel(ctx)
	c.enqueue(func() {
		if err := c.blobs.Save(bg, key, raw); err != nil {
			observability.PersistErrors.WithLabelValues(key).Inc()
			c.logger.ErrorContext(bg, "persisting blob failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	})
}
