package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"novel-engine/internal/domain"
	"novel-engine/internal/notifier"
	"novel-engine/internal/service"
	"novel-engine/pkg/taskmanager"
	sharedMiddleware "novel-engine/shared/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeviceRegistry stores push tokens for the authenticated user.
type DeviceRegistry interface {
	RegisterDevice(ctx context.Context, userID string, token notifier.DeviceToken) error
	UnregisterDevice(ctx context.Context, userID, token string) error
}

// StreamServer upgrades an authenticated request to a websocket.
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}

// APIError is the body of every error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StoryHandler serves the story API.
type StoryHandler struct {
	service service.StoryService
	devices DeviceRegistry
	stream  StreamServer
	logger  *zap.Logger
}

func NewStoryHandler(s service.StoryService, devices DeviceRegistry, stream StreamServer, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		service: s,
		devices: devices,
		stream:  stream,
		logger:  logger.Named("StoryHandler"),
	}
}

// RegisterRoutes mounts the API. auth guards the JSON routes; wsAuth guards the websocket upgrade.
// throttle runs after auth on the routes that reach the narrator or a mini-game.
func (h *StoryHandler) RegisterRoutes(router gin.IRouter, auth, wsAuth gin.HandlerFunc, throttle ...gin.HandlerFunc) {
	limited := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, throttle...), handler)
	}

	stories := router.Group("/stories", auth)
	{
		stories.POST("", h.createStory)
		stories.GET("", h.listStories)
		stories.GET("/:id", h.getStory)
		stories.POST("/:id/start", h.startStory)

		stories.POST("/:id/actions", limited(h.submitAction)...)
		stories.DELETE("/:id/actions", h.cancelAction)
		stories.POST("/:id/minigame", limited(h.playMiniGame)...)
		stories.POST("/:id/relationship-event/ack", h.acknowledgeRelationshipEvent)
		stories.POST("/:id/chapter/continue", h.continueChapter)
		stories.POST("/:id/characters/:characterId/stat-points", h.spendStatPoint)
		stories.GET("/:id/relationships", h.relationshipHistory)

		stories.POST("/:id/join", h.joinStory)
		stories.POST("/:id/leave", h.leaveStory)

		stories.GET("/:id/wallet", h.getWallet)
		stories.POST("/:id/wallet/bookmarks", h.purchaseBookmark)
		stories.GET("/:id/bookmarks", h.listBookmarks)
		stories.POST("/:id/bookmarks", h.createBookmark)
	}

	router.POST("/bookmarks/:id/fork", auth, h.forkFromBookmark)
	router.GET("/tasks/:id", auth, h.getActionTask)

	devices := router.Group("/devices", auth)
	{
		devices.POST("", h.registerDevice)
		devices.DELETE("/:token", h.unregisterDevice)
	}

	router.GET("/ws", wsAuth, h.serveWebsocket)
}

// handleServiceError maps service errors onto HTTP statuses.
func (h *StoryHandler) handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var apiErr APIError

	switch {
	case errors.Is(err, domain.ErrValidation):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Code: "validation", Message: err.Error()}
	case errors.Is(err, notifier.ErrUnsupportedPlatform):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Code: "validation", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCharacterNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Code: "not_found", Message: "Resource not found or access denied"}
	case errors.Is(err, domain.ErrNotYourTurn):
		statusCode = http.StatusForbidden
		apiErr = APIError{Code: "not_your_turn", Message: err.Error()}
	case errors.Is(err, domain.ErrActionPending):
		statusCode = http.StatusConflict
		apiErr = APIError{Code: "action_pending", Message: err.Error()}
	case errors.Is(err, domain.ErrVersionConflict):
		statusCode = http.StatusConflict
		apiErr = APIError{Code: "version_conflict", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrMiniGameActive),
		errors.Is(err, domain.ErrNoMiniGame),
		errors.Is(err, domain.ErrCharacterClaimed),
		errors.Is(err, domain.ErrAlreadyJoined):
		statusCode = http.StatusConflict
		apiErr = APIError{Code: "conflict", Message: err.Error()}
	case errors.Is(err, domain.ErrInsufficientResource):
		statusCode = http.StatusPaymentRequired
		apiErr = APIError{Code: "insufficient_resource", Message: err.Error()}
	case errors.Is(err, taskmanager.ErrTooManyTasks):
		statusCode = http.StatusTooManyRequests
		apiErr = APIError{Code: "busy", Message: "Too many pending actions, try again later"}
	case errors.Is(err, domain.ErrActionCancelled):
		statusCode = http.StatusConflict
		apiErr = APIError{Code: "cancelled", Message: err.Error()}
	case errors.Is(err, domain.ErrProposalRejected):
		statusCode = http.StatusBadGateway
		apiErr = APIError{Code: "proposal_rejected", Message: "The narrator could not continue the story, try again"}
	default:
		h.logger.Error("Unhandled internal error", zap.Error(err), zap.String("path", c.FullPath()))
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Code: "internal", Message: "Internal server error"}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode, apiErr)
}

func (h *StoryHandler) badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Code: "bad_request", Message: message})
}

func (h *StoryHandler) userID(c *gin.Context) (string, bool) {
	id, ok := sharedMiddleware.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{Code: "unauthorized", Message: "Unauthorized"})
	}
	return id, ok
}

func (h *StoryHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads limit and offset, defaulting to 20 and 0.
func parsePagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
