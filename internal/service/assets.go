package service

import (
	"context"
	"strings"
	"time"

	"novel-engine/internal/domain"
	"novel-engine/internal/messaging"

	"github.com/google/uuid"
)

// portrait sets the character's portrait URL and returns the task that renders it.
func (s *storyServiceImpl) portrait(storyID uuid.UUID, c *domain.Character) (messaging.AssetTask, bool) {
	if s.assets == nil {
		return messaging.AssetTask{}, false
	}
	desc := c.Name
	if c.Description != "" {
		desc = c.Name + ", " + c.Description
	}
	c.PortraitURL = s.assets.URLFor(desc)
	return s.assets.Task(messaging.AssetPortrait, storyID, c.ID, desc), true
}

// enterScene moves the story to a location and records the scene.
// The returned task is empty when no asset generator is configured.
func (s *storyServiceImpl) enterScene(story *domain.Story, location, description string, now time.Time) messaging.AssetTask {
	location = strings.TrimSpace(location)
	description = strings.TrimSpace(description)
	story.LocationName = location
	scene := domain.Scene{
		ID:           uuid.New(),
		LocationName: location,
		Description:  description,
		HistoryIndex: len(story.History),
		CreatedAt:    now,
	}
	var task messaging.AssetTask
	if s.assets != nil {
		desc := location
		if description != "" {
			desc = location + ": " + description
		}
		scene.ImageURL = s.assets.URLFor(desc)
		task = s.assets.Task(messaging.AssetScene, story.ID, scene.ID, desc)
	}
	story.Scenes = append(story.Scenes, scene)
	return task
}

func (s *storyServiceImpl) enqueueAssets(ctx context.Context, tasks []messaging.AssetTask) {
	if s.assets == nil {
		return
	}
	queued := tasks[:0]
	for _, t := range tasks {
		if t.TaskID != "" {
			queued = append(queued, t)
		}
	}
	if len(queued) > 0 {
		s.assets.Enqueue(context.WithoutCancel(ctx), queued...)
	}
}
