// Package relationship maintains the directed opinion graph between characters.
package relationship

import (
	"fmt"
	"slices"

	"novel-engine/internal/config"
	"novel-engine/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Graph adjusts opinions stored on the story's characters.
type Graph struct {
	rules  config.RelationshipRules
	logger *zap.Logger
}

func New(rules config.RelationshipRules, logger *zap.Logger) *Graph {
	return &Graph{rules: rules, logger: logger.Named("RelationshipGraph")}
}

// Value returns from's opinion of to (0 when never adjusted).
func (g *Graph) Value(story *domain.Story, fromID, toID uuid.UUID) int {
	from := story.Character(fromID)
	if from == nil {
		return 0
	}
	return from.Relationships[toID]
}

// Adjust changes from's opinion of to by delta, clamped to the configured range.
// The returned event is non-nil only the first time the unordered pair reaches the event threshold.
func (g *Graph) Adjust(story *domain.Story, fromID, toID uuid.UUID, delta int) (domain.RelationshipChange, *domain.RelationshipEvent, error) {
	if fromID == toID {
		return domain.RelationshipChange{}, nil, fmt.Errorf("%w: character cannot have a relationship with itself", domain.ErrValidation)
	}
	from := story.Character(fromID)
	if from == nil {
		return domain.RelationshipChange{}, nil, fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, fromID)
	}
	if story.Character(toID) == nil {
		return domain.RelationshipChange{}, nil, fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, toID)
	}
	if from.Relationships == nil {
		from.Relationships = map[uuid.UUID]int{}
	}

	before := from.Relationships[toID]
	after := clamp(before+delta, g.rules.Min, g.rules.Max)
	from.Relationships[toID] = after
	change := domain.RelationshipChange{FromID: fromID, ToID: toID, Delta: after - before, Value: after}

	if abs(after) < g.rules.EventThreshold {
		return change, nil, nil
	}
	key := PairKey(fromID, toID)
	if slices.Contains(story.CrossedThresholds, key) {
		return change, nil, nil
	}
	story.CrossedThresholds = append(story.CrossedThresholds, key)
	g.logger.Info("Relationship threshold crossed",
		zap.Stringer("storyID", story.ID), zap.Stringer("from", fromID), zap.Stringer("to", toID), zap.Int("value", after))
	return change, &domain.RelationshipEvent{
		CharacterA:   fromID,
		CharacterB:   toID,
		Value:        after,
		HistoryIndex: len(story.History),
	}, nil
}

// AdjustProposed caps a narrator-proposed delta to the per-turn limit before adjusting.
func (g *Graph) AdjustProposed(story *domain.Story, fromID, toID uuid.UUID, delta int) (domain.RelationshipChange, *domain.RelationshipEvent, error) {
	return g.Adjust(story, fromID, toID, clamp(delta, -g.rules.MaxDeltaPerTurn, g.rules.MaxDeltaPerTurn))
}

// History returns the entries whose relationship changes involve the pair {a, b}, most recent first.
func History(entries []domain.HistoryEntry, a, b uuid.UUID) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0)
	for i := len(entries) - 1; i >= 0; i-- {
		for _, rc := range entries[i].RelationshipChanges {
			if rc.Touches(a, b) {
				out = append(out, entries[i])
				break
			}
		}
	}
	return out
}

// PairKey identifies the unordered pair {a, b}.
func PairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if as > bs {
		as, bs = bs, as
	}
	return as + ":" + bs
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
