package realtime

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/models"
)

func TestHubRegisterLimits(t *testing.T) {
	hub := NewHub()
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	var clients []*Client
	for i := 0; i < maxConnsPerUser; i++ {
		c, err := hub.Register("alice1", nil)
		require.NoError(t, err)
		clients = append(clients, c)
	}
	_, err := hub.Register("alice1", nil)
	assert.Error(t, err)
	assert.True(t, hub.IsOnline("alice1"))

	for _, c := range clients {
		hub.UnregisterClient(c)
	}
	assert.False(t, hub.IsOnline("alice1"))
}

func TestHubBroadcastReachesAllUserConns(t *testing.T) {
	hub := NewHub()
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	a1, err := hub.Register("alice1", nil)
	require.NoError(t, err)
	a2, err := hub.Register("alice1", nil)
	require.NoError(t, err)
	b1, err := hub.Register("bob1", nil)
	require.NoError(t, err)

	hub.Broadcast("alice1", []byte("hello"))

	assert.Len(t, a1.Send, 1)
	assert.Len(t, a2.Send, 1)
	assert.Empty(t, b1.Send)
}

func TestTrySendDropsOnFullBuffer(t *testing.T) {
	hub := NewHub()
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	c, err := hub.Register("alice1", nil)
	require.NoError(t, err)
	for i := 0; i < cap(c.Send); i++ {
		c.Send <- []byte("fill")
	}

	c.TrySend([]byte("overflow"))
	// The buffer stayed full and the overflow message is gone; the gap
	// notice could not be queued either.
	assert.Len(t, c.Send, cap(c.Send))
}

func TestNotifierNilRedisIsNoop(t *testing.T) {
	t.Parallel()

	n := NewNotifier(nil)
	err := n.Publish(context.Background(), models.Notification{RecipientID: "alice1"})
	assert.NoError(t, err)
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), nil))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notify:user:alice1", UserChannel("alice1"))
}

func TestPublishReachesWiredHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub()
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	client, err := hub.Register("bob1", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	event := models.Notification{
		ID:          "n1",
		RecipientID: "bob1",
		ActorID:     "alice1",
		Type:        models.NotificationFollow,
		Timestamp:   time.Now().UTC(),
	}
	require.NoError(t, n.Publish(context.Background(), event))

	assert.Eventually(t, func() bool {
		select {
		case raw := <-client.Send:
			var got models.Notification
			return json.Unmarshal(raw, &got) == nil && got.ID == "n1"
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSubscriberStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())

	var received int32
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_, _ string) {
		atomic.AddInt32(&received, 1)
	}))

	require.NoError(t, n.Publish(context.Background(), models.Notification{ID: "n1", RecipientID: "bob1"}))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, n.Publish(context.Background(), models.Notification{ID: "n2", RecipientID: "bob1"}))
	assert.Never(t, func() bool {
		return atomic.LoadInt32(&received) > 1
	}, 200*time.Millisecond, 10*time.Millisecond)
}
