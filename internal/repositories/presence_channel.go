package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Well-known channel name shared by every publisher.
	presenceChannelName = "online-users"
	presenceKeyPrefix   = "presence:" + presenceChannelName + ":"

	// Entries expire without a refresh so a crashed session eventually
	// drops off the channel. Clean teardown retracts immediately.
	presenceTTL = 60 * time.Second
)

type RedisPresenceChannel struct {
	client *redis.Client
}

func NewRedisPresenceChannel(client *redis.Client) *RedisPresenceChannel {
	return &RedisPresenceChannel{client: client}
}

// Track publishes (or refreshes) the identity's presence slot.
// PublishedAt is restamped on every call.
func (c *RedisPresenceChannel) Track(ctx context.Context, entry *models.PresenceEntry) error {
	entry.PublishedAt = time.Now()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal presence entry: %w", err)
	}

	key := presenceKey(entry.UserID)
	if err := c.client.Set(ctx, key, data, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to track presence: %w", err)
	}
	return nil
}

// Untrack retracts the slot immediately rather than waiting for the TTL.
func (c *RedisPresenceChannel) Untrack(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to untrack presence: %w", err)
	}
	return nil
}

// List returns every live slot on the channel. Entries that fail to
// unmarshal are skipped; the channel is advisory.
func (c *RedisPresenceChannel) List(ctx context.Context) ([]*models.PresenceEntry, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, presenceKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan presence keys: %w", err)
	}

	if len(keys) == 0 {
		return nil, nil
	}

	results, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get presence entries: %w", err)
	}

	var entries []*models.PresenceEntry
	for _, result := range results {
		data, ok := result.(string)
		if !ok {
			// Expired between SCAN and MGET.
			continue
		}

		var entry models.PresenceEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// Helper: build Redis key for a presence slot
func presenceKey(userID uuid.UUID) string {
	return presenceKeyPrefix + userID.String()
}
