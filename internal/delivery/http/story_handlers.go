package http

import (
	"context"
	"net/http"

	"novel-engine/internal/domain"
	"novel-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type storyListResponse struct {
	Data   []domain.StorySummary `json:"data"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

func (h *StoryHandler) createStory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req service.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	story, err := h.service.CreateStory(c.Request.Context(), userID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story.ForPlayers())
}

func (h *StoryHandler) listStories(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	limit, offset := parsePagination(c)
	stories, err := h.service.ListStories(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if stories == nil {
		stories = []domain.StorySummary{}
	}
	c.JSON(http.StatusOK, storyListResponse{Data: stories, Limit: limit, Offset: offset})
}

func (h *StoryHandler) getStory(c *gin.Context) {
	h.storyCall(c, h.service.GetStory)
}

func (h *StoryHandler) startStory(c *gin.Context) {
	h.storyCall(c, h.service.StartStory)
}

func (h *StoryHandler) acknowledgeRelationshipEvent(c *gin.Context) {
	h.storyCall(c, h.service.AcknowledgeRelationshipEvent)
}

func (h *StoryHandler) continueChapter(c *gin.Context) {
	h.storyCall(c, h.service.ContinueChapter)
}

func (h *StoryHandler) leaveStory(c *gin.Context) {
	h.storyCall(c, h.service.LeaveStory)
}

// storyCall runs a story operation that takes no body and returns the story.
func (h *StoryHandler) storyCall(c *gin.Context, op func(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error)) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	story, err := op(c.Request.Context(), userID, storyID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story.ForPlayers())
}

func (h *StoryHandler) joinStory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	story, err := h.service.JoinStory(c.Request.Context(), userID, storyID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story.ForPlayers())
}
