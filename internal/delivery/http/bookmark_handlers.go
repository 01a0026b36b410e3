package http

import (
	"net/http"

	"novel-engine/internal/domain"
	"novel-engine/internal/notifier"

	"github.com/gin-gonic/gin"
)

func (h *StoryHandler) getWallet(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	wallet, err := h.service.GetWallet(c.Request.Context(), userID, storyID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (h *StoryHandler) purchaseBookmark(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	wallet, err := h.service.PurchaseBookmark(c.Request.Context(), userID, storyID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

// bookmarkResponse leaves out the snapshot; it can hold hidden mini-game state.
type bookmarkResponse struct {
	domain.Bookmark
	Snapshot *domain.Story `json:"snapshot,omitempty"`
}

func toBookmarkResponse(b domain.Bookmark) bookmarkResponse {
	return bookmarkResponse{Bookmark: b}
}

type createBookmarkRequest struct {
	Label string `json:"label"`
}

func (h *StoryHandler) createBookmark(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req createBookmarkRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}
	bm, err := h.service.CreateBookmark(c.Request.Context(), userID, storyID, req.Label)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookmarkResponse(*bm))
}

func (h *StoryHandler) listBookmarks(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	bookmarks, err := h.service.ListBookmarks(c.Request.Context(), userID, storyID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	out := make([]bookmarkResponse, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, toBookmarkResponse(b))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *StoryHandler) forkFromBookmark(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	bookmarkID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	story, err := h.service.ForkFromBookmark(c.Request.Context(), userID, bookmarkID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story.ForPlayers())
}

type registerDeviceRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required"`
}

func (h *StoryHandler) registerDevice(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if err := h.devices.RegisterDevice(c.Request.Context(), userID, notifier.DeviceToken{Token: req.Token, Platform: req.Platform}); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoryHandler) unregisterDevice(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if err := h.devices.UnregisterDevice(c.Request.Context(), userID, c.Param("token")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoryHandler) serveWebsocket(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	h.stream.Serve(c.Writer, c.Request, userID)
}
