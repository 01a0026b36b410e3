package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"novel-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedStoryRepository is a read-through Redis cache in front of another StoryRepository.
// Redis failures are logged and never fail the call.
type CachedStoryRepository struct {
	next   StoryRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ StoryRepository = (*CachedStoryRepository)(nil)

func NewCachedStoryRepository(next StoryRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedStoryRepository {
	return &CachedStoryRepository{next: next, client: client, ttl: ttl, logger: logger.Named("StoryCache")}
}

func storyKey(id uuid.UUID) string     { return fmt.Sprintf("story:%s", id) }
func storyHashKey(id uuid.UUID) string { return fmt.Sprintf("story_hash:%s", id) }

func (c *CachedStoryRepository) Create(ctx context.Context, story *domain.Story) error {
	if err := c.next.Create(ctx, story); err != nil {
		return err
	}
	c.put(ctx, story)
	return nil
}

func (c *CachedStoryRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Story, error) {
	data, err := c.client.Get(ctx, storyKey(id)).Bytes()
	switch {
	case err == nil:
		var story domain.Story
		if jsonErr := json.Unmarshal(data, &story); jsonErr == nil {
			return &story, nil
		}
		c.logger.Warn("Dropping undecodable cache entry", zap.Stringer("storyID", id))
		c.client.Del(ctx, storyKey(id))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Story cache read failed", zap.Stringer("storyID", id), zap.Error(err))
	}

	story, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, story)
	return story, nil
}

func (c *CachedStoryRepository) Save(ctx context.Context, story *domain.Story) error {
	if err := c.next.Save(ctx, story); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			c.invalidate(ctx, story.ID)
		}
		return err
	}
	c.put(ctx, story)
	return nil
}

func (c *CachedStoryRepository) SaveWithBookmark(ctx context.Context, story *domain.Story, bookmark *domain.Bookmark) error {
	if err := c.next.SaveWithBookmark(ctx, story, bookmark); err != nil {
		c.invalidate(ctx, story.ID)
		return err
	}
	c.put(ctx, story)
	return nil
}

func (c *CachedStoryRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.StorySummary, error) {
	return c.next.ListForUser(ctx, userID, limit, offset)
}

func (c *CachedStoryRepository) GetBookmark(ctx context.Context, id uuid.UUID) (*domain.Bookmark, error) {
	return c.next.GetBookmark(ctx, id)
}

func (c *CachedStoryRepository) ListBookmarks(ctx context.Context, storyID uuid.UUID) ([]domain.Bookmark, error) {
	return c.next.ListBookmarks(ctx, storyID)
}

// StateHash returns the cached hash of the latest committed snapshot, "" when not cached.
func (c *CachedStoryRepository) StateHash(ctx context.Context, id uuid.UUID) string {
	hash, err := c.client.Get(ctx, storyHashKey(id)).Result()
	if err != nil {
		return ""
	}
	return hash
}

func (c *CachedStoryRepository) put(ctx context.Context, story *domain.Story) {
	data, err := json.Marshal(story)
	if err != nil {
		c.logger.Warn("Failed to encode story for cache", zap.Stringer("storyID", story.ID), zap.Error(err))
		return
	}
	pipe := c.client.Pipeline()
	pipe.Set(ctx, storyKey(story.ID), data, c.ttl)
	pipe.Set(ctx, storyHashKey(story.ID), story.StateHash, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Story cache write failed", zap.Stringer("storyID", story.ID), zap.Error(err))
	}
}

func (c *CachedStoryRepository) invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, storyKey(id), storyHashKey(id)).Err(); err != nil {
		c.logger.Warn("Story cache invalidation failed", zap.Stringer("storyID", id), zap.Error(err))
	}
}
