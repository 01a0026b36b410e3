package messaging

import (
	"time"

	"novel-engine/internal/domain"

	"github.com/google/uuid"
)

// TurnCommittedEvent is published after every committed state change of a story.
type TurnCommittedEvent struct {
	EventID      string             `json:"eventId"`
	StoryID      uuid.UUID          `json:"storyId"`
	Version      int64              `json:"version"`
	StateHash    string             `json:"stateHash"`
	Status       domain.StoryStatus `json:"status"`
	Reason       string             `json:"reason"`
	HistoryIndex int                `json:"historyIndex"`
	ActorID      uuid.UUID          `json:"actorId,omitempty"`
	NextActorID  uuid.UUID          `json:"nextActorId,omitempty"`
	CommittedAt  time.Time          `json:"committedAt"`
}

// AssetKind is the entity an asset belongs to.
type AssetKind string

const (
	AssetScene    AssetKind = "scene"
	AssetPortrait AssetKind = "portrait"
)

// AssetTask asks the asset generation service to render Description at TargetURL.
type AssetTask struct {
	TaskID      string    `json:"taskId"`
	Kind        AssetKind `json:"kind"`
	Key         string    `json:"key"`
	Description string    `json:"description"`
	TargetURL   string    `json:"targetUrl"`
	StoryID     uuid.UUID `json:"storyId"`
	EntityID    uuid.UUID `json:"entityId"`
}
