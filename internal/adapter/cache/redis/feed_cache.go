// Package redis caches catalog metadata and composed profile feeds.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
)

const (
	releaseKeyPrefix = "release:"
	// profileFeedKeySetFormat tracks every cached feed key for an author so
	// invalidation can delete them without a scan.
	profileFeedKeySetFormat = "feed:profile:%s:keys"
)

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// FeedCache implements domain.FeedCache on Redis. All reads treat a miss as
// (nil, nil); callers fall through to the source of truth.
type FeedCache struct {
	client *redis.Client
	logger *logger.Logger
}

func NewFeedCache(client *redis.Client, log *logger.Logger) *FeedCache {
	return &FeedCache{
		client: client,
		logger: log.Named("FeedCache"),
	}
}

func (c *FeedCache) GetRelease(ctx context.Context, releaseID string) (*domain.Release, error) {
	data, err := c.client.Get(ctx, releaseKeyPrefix+releaseID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		c.logger.Warn("Redis get failed for release", zap.Error(err), zap.String("release_id", releaseID))
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var release domain.Release
	if err := json.Unmarshal(data, &release); err != nil {
		c.logger.Warn("Dropping undecodable cached release", zap.Error(err), zap.String("release_id", releaseID))
		c.client.Del(ctx, releaseKeyPrefix+releaseID)
		return nil, nil
	}
	return &release, nil
}

func (c *FeedCache) SetRelease(ctx context.Context, release *domain.Release, ttl time.Duration) error {
	data, err := json.Marshal(release)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	if err := c.client.Set(ctx, releaseKeyPrefix+release.CollectionID, data, ttl).Err(); err != nil {
		c.logger.Warn("Redis set failed for release", zap.Error(err), zap.String("release_id", release.CollectionID))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

func (c *FeedCache) GetProfileFeed(ctx context.Context, key string) ([]*domain.FeedEntry, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		c.logger.Warn("Redis get failed for profile feed", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var entries []*domain.FeedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("Dropping undecodable cached feed", zap.Error(err), zap.String("key", key))
		c.client.Del(ctx, key)
		return nil, nil
	}
	return entries, nil
}

func (c *FeedCache) SetProfileFeed(ctx context.Context, author, key string, entries []*domain.FeedEntry, ttl time.Duration) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	keySet := fmt.Sprintf(profileFeedKeySetFormat, author)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.SAdd(ctx, keySet, key)
	// Keep the tracking set alive a little longer than the entries it tracks
	// so invalidation can still find keys that are about to expire.
	pipe.Expire(ctx, keySet, ttl+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Redis pipeline failed for profile feed", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// InvalidateProfileFeed drops every cached feed page for the author. Called
// after any write that changes what the author's profile shows.
func (c *FeedCache) InvalidateProfileFeed(ctx context.Context, author string) error {
	keySet := fmt.Sprintf(profileFeedKeySetFormat, author)

	keys, err := c.client.SMembers(ctx, keySet).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		c.logger.Warn("Redis smembers failed during invalidation", zap.Error(err), zap.String("author", author))
		return fmt.Errorf("cache invalidation failed: %w", err)
	}

	keys = append(keys, keySet)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Redis del failed during invalidation", zap.Error(err), zap.String("author", author))
		return fmt.Errorf("cache invalidation failed: %w", err)
	}

	c.logger.Debug("Invalidated profile feed cache",
		zap.String("author", author),
		zap.Int("keys", len(keys)-1))
	return nil
}
