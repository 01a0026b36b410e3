package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"novel-engine/internal/domain"
	"novel-engine/internal/minigame"
	"novel-engine/internal/service"
	"novel-engine/shared/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type taskAcceptedResponse struct {
	TaskID uuid.UUID `json:"taskId"`
}

// submitAction runs a turn. With ?async=true the turn is queued and 202 is returned with the task ID.
func (h *StoryHandler) submitAction(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if c.Query("async") == "true" {
		taskID, err := h.service.SubmitActionAsync(c.Request.Context(), userID, storyID, req)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, taskAcceptedResponse{TaskID: taskID})
		return
	}

	res, err := h.service.SubmitAction(c.Request.Context(), userID, storyID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	res.Story = res.Story.ForPlayers()
	c.JSON(http.StatusOK, res)
}

func (h *StoryHandler) cancelAction(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.CancelAction(c.Request.Context(), userID, storyID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoryHandler) getActionTask(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	taskID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	task, err := h.service.GetActionTask(c.Request.Context(), userID, taskID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// miniGameMoveRequest carries one move. Payload shape depends on Move:
//
//	offer     {"amount": 40}
//	bid       {"bid": {"quantity": 3, "value": 5}}
//	challenge {}
//	choose    {"index": 1}
//	sequence  {"symbols": ["sun", "moon"]}
//	answer    {"text": "a shadow"}
type miniGameMoveRequest struct {
	CharacterID uuid.UUID       `json:"characterId"`
	Move        string          `json:"move" binding:"required"`
	Payload     json.RawMessage `json:"payload"`
}

func decodeMove(kind string, payload json.RawMessage) (minigame.Move, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	var move minigame.Move
	var err error
	switch kind {
	case "offer":
		var m minigame.Offer
		err = utils.DecodeStrict(payload, &m)
		move = m
	case "bid":
		var m minigame.PlaceBid
		err = utils.DecodeStrict(payload, &m)
		move = m
	case "challenge":
		move = minigame.Challenge{}
	case "choose":
		var m minigame.ChooseOption
		err = utils.DecodeStrict(payload, &m)
		move = m
	case "sequence":
		var m minigame.SubmitSequence
		err = utils.DecodeStrict(payload, &m)
		move = m
	case "answer":
		var m minigame.Answer
		err = utils.DecodeStrict(payload, &m)
		move = m
	default:
		return nil, fmt.Errorf("%w: unknown move %q", domain.ErrValidation, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bad %s payload: %v", domain.ErrValidation, kind, err)
	}
	return move, nil
}

func (h *StoryHandler) playMiniGame(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req miniGameMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	move, err := decodeMove(req.Move, req.Payload)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	res, err := h.service.PlayMiniGame(c.Request.Context(), userID, storyID, service.MiniGameRequest{
		CharacterID: req.CharacterID,
		Move:        move,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	res.Story = res.Story.ForPlayers()
	c.JSON(http.StatusOK, res)
}

type spendStatPointRequest struct {
	Stat domain.Stat `json:"stat" binding:"required"`
}

func (h *StoryHandler) spendStatPoint(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	characterID, ok := h.uuidParam(c, "characterId")
	if !ok {
		return
	}
	var req spendStatPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	story, err := h.service.SpendStatPoint(c.Request.Context(), userID, storyID, characterID, req.Stat)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story.ForPlayers())
}

// relationshipHistory lists the turns that moved the relationship between ?a= and ?b=.
func (h *StoryHandler) relationshipHistory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	a, errA := uuid.Parse(c.Query("a"))
	b, errB := uuid.Parse(c.Query("b"))
	if errA != nil || errB != nil {
		h.badRequest(c, "Query parameters a and b must be character IDs")
		return
	}
	entries, err := h.service.RelationshipHistory(c.Request.Context(), userID, storyID, a, b)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
