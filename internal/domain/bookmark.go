package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bookmark is a checkpoint of a story. Snapshot is never modified after creation;
// forking copies it into a new story.
type Bookmark struct {
	ID           uuid.UUID `json:"id"`
	StoryID      uuid.UUID `json:"storyId"`
	OwnerID      string    `json:"ownerId"`
	Label        string    `json:"label"`
	HistoryIndex int       `json:"historyIndex"`
	Snapshot     *Story    `json:"snapshot,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StorySummary is the list view of a story.
type StorySummary struct {
	ID        uuid.UUID   `json:"id"`
	OwnerID   string      `json:"ownerId"`
	Title     string      `json:"title"`
	Status    StoryStatus `json:"status"`
	CoOp      bool        `json:"coOp"`
	Version   int64       `json:"version"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Summary returns the list view of s.
func (s *Story) Summary() StorySummary {
	return StorySummary{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Title:     s.Title,
		Status:    s.Status,
		CoOp:      s.CoOp,
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
	}
}
