package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/redis/go-redis/v9"
)

const notifyChannelPrefix = "notify:user:"

// RedisNotificationFeed carries notification inserts over Redis pub/sub,
// one channel per recipient. Pub/sub gives at-least-once to connected
// subscribers and nothing to anyone else; the row in Postgres is the
// durable copy either way.
type RedisNotificationFeed struct {
	client *redis.Client
}

func NewRedisNotificationFeed(client *redis.Client) *RedisNotificationFeed {
	return &RedisNotificationFeed{client: client}
}

func (f *RedisNotificationFeed) Publish(ctx context.Context, notification *models.NotificationMessage) error {
	if notification.UserID == nil {
		return fmt.Errorf("cannot publish notification without a recipient")
	}

	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	channel := notifyChannelPrefix + notification.UserID.String()
	if err := f.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Subscribe opens a feed subscription filtered to one recipient. The
// handler runs on the subscription's own goroutine; Close stops it.
func (f *RedisNotificationFeed) Subscribe(ctx context.Context, userID uuid.UUID, handler func(models.NotificationMessage)) (FeedSubscription, error) {
	channel := notifyChannelPrefix + userID.String()
	pubsub := f.client.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed before returning, so a
	// publish racing the subscribe is not silently dropped.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to notification feed: %w", err)
	}

	sub := &redisFeedSubscription{pubsub: pubsub}
	go func() {
		for msg := range pubsub.Channel() {
			var notification models.NotificationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &notification); err != nil {
				log.Printf("[feed] dropping malformed notification event: %v", err)
				continue
			}
			handler(notification)
		}
	}()

	return sub, nil
}

type redisFeedSubscription struct {
	pubsub *redis.PubSub
}

func (s *redisFeedSubscription) Close() error {
	return s.pubsub.Close()
}
