package service

import (
	"time"

	"novel-engine/internal/domain"
	"novel-engine/internal/minigame"

	"github.com/google/uuid"
)

// CharacterSeed describes a character at story creation or when a co-op player joins with a new one.
type CharacterSeed struct {
	Name        string       `json:"name" binding:"required"`
	Description string       `json:"description"`
	Playable    bool         `json:"playable"`
	Stats       domain.Stats `json:"stats"`
	Skills      []string     `json:"skills"`
}

type CreateStoryRequest struct {
	Title               string          `json:"title" binding:"required"`
	Premise             string          `json:"premise"`
	LocationName        string          `json:"locationName" binding:"required"`
	LocationDescription string          `json:"locationDescription"`
	Characters          []CharacterSeed `json:"characters" binding:"required,min=1"`
	// ActiveCharacter names the character the owner plays. Empty picks the first playable one.
	ActiveCharacter string `json:"activeCharacter"`
	CoOp            bool   `json:"coOp"`
	DisplayName     string `json:"displayName"`
}

type ActionRequest struct {
	CharacterID uuid.UUID `json:"characterId"`
	Text        string    `json:"text" binding:"required"`
}

// TurnResult is what a committed turn produced.
type TurnResult struct {
	Story             *domain.Story             `json:"story"`
	Entry             domain.HistoryEntry       `json:"entry"`
	RelationshipEvent *domain.RelationshipEvent `json:"relationshipEvent,omitempty"`
	NewObjectives     []domain.Objective        `json:"newObjectives,omitempty"`
	CompletedIDs      []uuid.UUID               `json:"completedObjectives,omitempty"`
	MiniGameStarted   bool                      `json:"miniGameStarted,omitempty"`
}

// MiniGameRequest carries exactly one move.
type MiniGameRequest struct {
	CharacterID uuid.UUID     `json:"characterId"`
	Move        minigame.Move `json:"-"`
}

type MiniGameResult struct {
	Story          *domain.Story        `json:"story"`
	Outcome        domain.Outcome       `json:"outcome"`
	Dialogue       string               `json:"dialogue,omitempty"`
	PatienceDamage int                  `json:"patienceDamage,omitempty"`
	NPCAction      *minigame.NPCAction  `json:"npcAction,omitempty"`
	ChallengeCount *int                 `json:"challengeCount,omitempty"`
	Feedback       []bool               `json:"feedback,omitempty"`
	Entry          *domain.HistoryEntry `json:"entry,omitempty"`
}

// JoinRequest claims CharacterID, or creates NewCharacter when CharacterID is nil.
type JoinRequest struct {
	DisplayName  string         `json:"displayName"`
	CharacterID  uuid.UUID      `json:"characterId"`
	NewCharacter *CharacterSeed `json:"newCharacter,omitempty"`
}

// WalletView is the wallet as of now, with regeneration applied.
type WalletView struct {
	domain.Wallet
	NextTokenAt *time.Time `json:"nextTokenAt,omitempty"`
}
