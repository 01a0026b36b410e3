package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StoryStatus is the state of the narrative state machine.
type StoryStatus string

const (
	StatusIdle              StoryStatus = "idle"
	StatusPlaying           StoryStatus = "playing"
	StatusChapterEnd        StoryStatus = "chapter_end"
	StatusRelationshipEvent StoryStatus = "relationship_event"
	StatusEnded             StoryStatus = "ended"
)

// TimeOfDay cycles Morning -> Afternoon -> Evening -> Night -> Morning.
type TimeOfDay string

const (
	Morning   TimeOfDay = "Morning"
	Afternoon TimeOfDay = "Afternoon"
	Evening   TimeOfDay = "Evening"
	Night     TimeOfDay = "Night"
)

// Next returns the following time of day. Unknown values restart at Morning.
func (t TimeOfDay) Next() TimeOfDay {
	switch t {
	case Morning:
		return Afternoon
	case Afternoon:
		return Evening
	case Evening:
		return Night
	default:
		return Morning
	}
}

// ObjectiveStatus of a quest-like goal.
type ObjectiveStatus string

const (
	ObjectiveActive    ObjectiveStatus = "active"
	ObjectiveCompleted ObjectiveStatus = "completed"
)

type Objective struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Status      ObjectiveStatus `json:"status"`
	TokenReward int             `json:"tokenReward"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Scene is a visited location. ImageURL is filled by the asset boundary.
type Scene struct {
	ID           uuid.UUID `json:"id"`
	LocationName string    `json:"locationName"`
	Description  string    `json:"description,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	HistoryIndex int       `json:"historyIndex"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Player binds a co-op participant to the character they claimed.
type Player struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	CharacterID uuid.UUID `json:"characterId"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// RelationshipChange records one directed adjustment made during a turn.
type RelationshipChange struct {
	FromID uuid.UUID `json:"fromId"`
	ToID   uuid.UUID `json:"toId"`
	Delta  int       `json:"delta"`
	Value  int       `json:"value"`
}

// Touches reports whether the change concerns the unordered pair {a, b}.
func (r RelationshipChange) Touches(a, b uuid.UUID) bool {
	return (r.FromID == a && r.ToID == b) || (r.FromID == b && r.ToID == a)
}

// EntryKind distinguishes free-text turns from mini-game resolutions.
type EntryKind string

const (
	EntryAction   EntryKind = "action"
	EntryMiniGame EntryKind = "minigame"
)

// HistoryEntry is one committed turn. Entries are never modified after being appended.
type HistoryEntry struct {
	ID                  uuid.UUID            `json:"id"`
	Index               int                  `json:"index"`
	Kind                EntryKind            `json:"kind"`
	ActorID             uuid.UUID            `json:"actorId"`
	ChoiceText          string               `json:"choiceText"`
	OutcomeText         string               `json:"outcomeText"`
	FromLocation        string               `json:"fromLocation,omitempty"`
	ToLocation          string               `json:"toLocation,omitempty"`
	RelationshipChanges []RelationshipChange `json:"relationshipChanges,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
}

// RelationshipEvent is raised the first time a pair's opinion crosses the threshold.
type RelationshipEvent struct {
	CharacterA   uuid.UUID `json:"characterA"`
	CharacterB   uuid.UUID `json:"characterB"`
	Value        int       `json:"value"`
	HistoryIndex int       `json:"historyIndex"`
}

// Wallet holds the story's regenerating resources.
type Wallet struct {
	ActionTokens      int       `json:"actionTokens"`
	Bookmarks         int       `json:"bookmarks"`
	LastTokenRegen    time.Time `json:"lastTokenRegen"`
	LastBookmarkRegen time.Time `json:"lastBookmarkRegen"`
}

// ChapterSummary is stored when a chapter closes.
type ChapterSummary struct {
	Chapter      int    `json:"chapter"`
	Summary      string `json:"summary"`
	HistoryIndex int    `json:"historyIndex"`
}

// Story is the full committed state of one narrative.
type Story struct {
	ID                       uuid.UUID          `json:"id"`
	OwnerID                  string             `json:"ownerId"`
	Title                    string             `json:"title"`
	Premise                  string             `json:"premise,omitempty"`
	Status                   StoryStatus        `json:"status"`
	Chapter                  int                `json:"chapter"`
	ChapterSummaries         []ChapterSummary   `json:"chapterSummaries"`
	Characters               []*Character       `json:"characters"`
	Scenes                   []Scene            `json:"scenes"`
	Objectives               []Objective        `json:"objectives"`
	ActiveCharacterID        uuid.UUID          `json:"activeCharacterId"`
	TurnCharacterID          uuid.UUID          `json:"turnCharacterId"`
	CoOp                     bool               `json:"coOp"`
	Players                  []Player           `json:"players,omitempty"`
	History                  []HistoryEntry     `json:"storyHistory"`
	TimeOfDay                TimeOfDay          `json:"timeOfDay"`
	LocationName             string             `json:"locationName"`
	ActiveMiniGame           MiniGame           `json:"-"`
	MiniGameActorID          uuid.UUID          `json:"miniGameActorId"`
	PendingRelationshipEvent *RelationshipEvent `json:"pendingRelationshipEvent,omitempty"`
	CrossedThresholds        []string           `json:"crossedThresholds,omitempty"`
	ObjectiveCountdown       int                `json:"objectiveCountdown"`
	Wallet                   Wallet             `json:"wallet"`
	EndingText               string             `json:"endingText,omitempty"`
	Version                  int64              `json:"version"`
	StateHash                string             `json:"stateHash,omitempty"`
	CreatedAt                time.Time          `json:"createdAt"`
	UpdatedAt                time.Time          `json:"updatedAt"`
}

type storyAlias Story

type storyJSON struct {
	*storyAlias
	ActiveMiniGame json.RawMessage `json:"activeMiniGame"`
}

// MarshalJSON encodes the story including the tagged active mini-game.
func (s Story) MarshalJSON() ([]byte, error) {
	mg, err := MarshalMiniGame(s.ActiveMiniGame)
	if err != nil {
		return nil, err
	}
	alias := storyAlias(s)
	return json.Marshal(storyJSON{storyAlias: &alias, ActiveMiniGame: mg})
}

// UnmarshalJSON decodes a story produced by MarshalJSON.
func (s *Story) UnmarshalJSON(data []byte) error {
	aux := storyJSON{storyAlias: (*storyAlias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	mg, err := UnmarshalMiniGame(aux.ActiveMiniGame)
	if err != nil {
		return err
	}
	s.ActiveMiniGame = mg
	return nil
}

// Character returns the character with the given id, or nil.
func (s *Story) Character(id uuid.UUID) *Character {
	for _, c := range s.Characters {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// FindCharacter resolves a narrator reference, which may be an id or a name.
func (s *Story) FindCharacter(ref string) *Character {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		return s.Character(id)
	}
	for _, c := range s.Characters {
		if strings.EqualFold(c.Name, ref) {
			return c
		}
	}
	return nil
}

// PlayerByUser returns the co-op player entry for a user, or nil.
func (s *Story) PlayerByUser(userID string) *Player {
	for i := range s.Players {
		if s.Players[i].UserID == userID {
			return &s.Players[i]
		}
	}
	return nil
}

// PlayerByCharacter returns the player who claimed the character, or nil.
func (s *Story) PlayerByCharacter(id uuid.UUID) *Player {
	for i := range s.Players {
		if s.Players[i].CharacterID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// ActiveObjectives counts objectives that are not completed yet.
func (s *Story) ActiveObjectives() int {
	n := 0
	for _, o := range s.Objectives {
		if o.Status == ObjectiveActive {
			n++
		}
	}
	return n
}

// CurrentActorID is the character whose action is acceptable right now.
func (s *Story) CurrentActorID() uuid.UUID {
	if s.CoOp {
		return s.TurnCharacterID
	}
	return s.ActiveCharacterID
}

// Clone returns a deep copy suitable for speculative reconciliation.
func (s *Story) Clone() *Story {
	if s == nil {
		return nil
	}
	cp := *s
	cp.ChapterSummaries = cloneSlice(s.ChapterSummaries)
	if s.Characters != nil {
		cp.Characters = make([]*Character, len(s.Characters))
		for i, c := range s.Characters {
			cp.Characters[i] = c.Clone()
		}
	}
	cp.Scenes = cloneSlice(s.Scenes)
	if s.Objectives != nil {
		cp.Objectives = make([]Objective, len(s.Objectives))
		for i, o := range s.Objectives {
			cp.Objectives[i] = o
			if o.CompletedAt != nil {
				t := *o.CompletedAt
				cp.Objectives[i].CompletedAt = &t
			}
		}
	}
	cp.Players = cloneSlice(s.Players)
	if s.History != nil {
		cp.History = make([]HistoryEntry, len(s.History))
		for i, h := range s.History {
			cp.History[i] = h
			cp.History[i].RelationshipChanges = cloneSlice(h.RelationshipChanges)
		}
	}
	cp.ActiveMiniGame = CloneMiniGame(s.ActiveMiniGame)
	if s.PendingRelationshipEvent != nil {
		ev := *s.PendingRelationshipEvent
		cp.PendingRelationshipEvent = &ev
	}
	cp.CrossedThresholds = cloneSlice(s.CrossedThresholds)
	return &cp
}

// OpenMiniGame makes game the active mini-game, played by actorID until it ends.
func (s *Story) OpenMiniGame(game MiniGame, actorID uuid.UUID) {
	s.ActiveMiniGame = game
	s.MiniGameActorID = actorID
}

// CloseMiniGame drops the active mini-game and its owner.
func (s *Story) CloseMiniGame() {
	s.ActiveMiniGame = nil
	s.MiniGameActorID = uuid.Nil
}

// ForPlayers returns a copy of the story that is safe to send to clients.
func (s *Story) ForPlayers() *Story {
	cp := s.Clone()
	cp.ActiveMiniGame = Conceal(s.ActiveMiniGame)
	return cp
}
