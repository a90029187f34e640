package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"

	"github.com/redis/go-redis/v9"

	"agora/internal/models"
	"agora/internal/observability"
)

const userChannelPrefix = "notify:user:"

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// Notifier publishes notification events into Redis channels. A nil
// Notifier or nil Redis client turns every method into a no-op, which keeps single-process
// deployments working without Redis.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier wraps the given Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish sends the notification to its recipient's channel. Satisfies the
// coordinator's event publisher contract.
func (n *Notifier) Publish(ctx context.Context, event models.Notification) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, UserChannel(event.RecipientID), payload).Err()
}

// StartPatternSubscriber subscribes to every user channel and invokes
// onMessage per delivery until the context ends.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.Logger.Error("panic in pattern subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
