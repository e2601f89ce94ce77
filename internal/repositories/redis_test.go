package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuantumticaret/storepulse/internal/models"
)

// getTestRedisClient returns a Redis client for testing, or skips the
// test when no local Redis is reachable.
func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use DB 1 for tests (different from production DB 0)
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("test Redis not available: %v", err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

func cleanupKeys(t *testing.T, client *redis.Client, pattern string) {
	t.Helper()
	ctx := context.Background()
	keys, err := client.Keys(ctx, pattern).Result()
	if err != nil {
		t.Logf("Warning: failed to get keys: %v", err)
		return
	}
	if len(keys) > 0 {
		if err := client.Del(ctx, keys...).Err(); err != nil {
			t.Logf("Warning: failed to cleanup keys: %v", err)
		}
	}
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisSessionRepository(client)
	ctx := context.Background()

	defer cleanupKeys(t, client, "session:*")
	defer cleanupKeys(t, client, "account:*:sessions")

	accountID := uuid.New()
	session := &models.Session{
		ID:        "session-123",
		AccountID: accountID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(),
	}

	require.NoError(t, repo.Create(ctx, session))

	retrieved, err := repo.GetByID(ctx, "session-123")
	require.NoError(t, err)
	assert.Equal(t, accountID, retrieved.AccountID)
}

func TestSessionRepository_DeleteRemovesIndex(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisSessionRepository(client)
	ctx := context.Background()

	defer cleanupKeys(t, client, "session:*")
	defer cleanupKeys(t, client, "account:*:sessions")

	accountID := uuid.New()
	session := &models.Session{
		ID:        "session-to-delete",
		AccountID: accountID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, session))

	require.NoError(t, repo.Delete(ctx, "session-to-delete"))

	_, err := repo.GetByID(ctx, "session-to-delete")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPresenceChannel_TrackListUntrack(t *testing.T) {
	client := getTestRedisClient(t)
	channel := NewRedisPresenceChannel(client)
	ctx := context.Background()

	defer cleanupKeys(t, client, "presence:online-users:*")

	entry := &models.PresenceEntry{
		UserID:      uuid.New(),
		DisplayName: "Ayşe",
		Email:       "ayse@example.com",
		PublishedAt: time.Now(),
	}
	require.NoError(t, channel.Track(ctx, entry))

	entries, err := channel.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.UserID, entries[0].UserID)
	assert.Equal(t, "Ayşe", entries[0].DisplayName)

	require.NoError(t, channel.Untrack(ctx, entry.UserID))

	entries, err = channel.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPresenceChannel_TrackSetsTTL(t *testing.T) {
	client := getTestRedisClient(t)
	channel := NewRedisPresenceChannel(client)
	ctx := context.Background()

	defer cleanupKeys(t, client, "presence:online-users:*")

	entry := &models.PresenceEntry{
		UserID:      uuid.New(),
		DisplayName: "Mehmet",
		Email:       "mehmet@example.com",
		PublishedAt: time.Now(),
	}
	require.NoError(t, channel.Track(ctx, entry))

	ttl, err := client.TTL(ctx, presenceKey(entry.UserID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "presence keys must expire on their own")
}

func TestNotificationFeed_PublishReachesSubscriber(t *testing.T) {
	client := getTestRedisClient(t)
	feed := NewRedisNotificationFeed(client)
	ctx := context.Background()

	userID := uuid.New()
	received := make(chan models.NotificationMessage, 1)

	sub, err := feed.Subscribe(ctx, userID, func(n models.NotificationMessage) {
		received <- n
	})
	require.NoError(t, err)
	defer sub.Close()

	notification := &models.NotificationMessage{
		ID:      uuid.New(),
		UserID:  &userID,
		Message: "Siparişiniz kargoya verildi",
	}
	require.NoError(t, feed.Publish(ctx, notification))

	select {
	case got := <-received:
		assert.Equal(t, notification.ID, got.ID)
		assert.Equal(t, "Siparişiniz kargoya verildi", got.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("notification never reached the subscriber")
	}
}

func TestNotificationFeed_SubscriberOnlySeesOwnChannel(t *testing.T) {
	client := getTestRedisClient(t)
	feed := NewRedisNotificationFeed(client)
	ctx := context.Background()

	subscriber := uuid.New()
	other := uuid.New()
	received := make(chan models.NotificationMessage, 1)

	sub, err := feed.Subscribe(ctx, subscriber, func(n models.NotificationMessage) {
		received <- n
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, feed.Publish(ctx, &models.NotificationMessage{
		ID:      uuid.New(),
		UserID:  &other,
		Message: "başkasının bildirimi",
	}))

	select {
	case <-received:
		t.Fatal("subscriber received another user's notification")
	case <-time.After(300 * time.Millisecond):
	}
}
