package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hackhub/backend/internal/model"
)

const (
	cacheMaxMessages = 200
	cacheTTL         = 24 * time.Hour
)

// ChannelCache keeps the tail of each channel in redis so a freshly connected
// client gets its history without hitting postgres. Any mutation of a cached
// message invalidates the whole channel; the next reader repopulates it.
type ChannelCache interface {
	PushMessage(ctx context.Context, channel string, msg *model.Message) error
	Recent(ctx context.Context, channel string, limit int) ([]model.Message, error)
	Invalidate(ctx context.Context, channel string) error
}

type channelCache struct {
	rdb *redis.Client
}

func NewChannelCache(rdb *redis.Client) ChannelCache {
	return &channelCache{rdb: rdb}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *channelCache) key(channel string) string {
	return "channel:" + channel + ":messages"
}

func (c *channelCache) PushMessage(ctx context.Context, channel string, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := c.key(channel)
	pipe := c.rdb.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -cacheMaxMessages, -1)
	pipe.Expire(ctx, key, cacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache message: %w", err)
	}
	return nil
}

func (c *channelCache) Recent(ctx context.Context, channel string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > cacheMaxMessages {
		limit = cacheMaxMessages
	}

	values, err := c.rdb.LRange(ctx, c.key(channel), int64(-limit), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read channel cache: %w", err)
	}

	messages := make([]model.Message, 0, len(values))
	for _, v := range values {
		var msg model.Message
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (c *channelCache) Invalidate(ctx context.Context, channel string) error {
	if err := c.rdb.Del(ctx, c.key(channel)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate channel cache: %w", err)
	}
	return nil
}
