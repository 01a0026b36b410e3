package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"novel-engine/internal/domain"
	"novel-engine/internal/messaging"
	"novel-engine/internal/notifier"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// WebSocket message types sent to story subscribers.
const (
	MessageStoryUpdated = "story_updated"
	MessageYourTurn     = "your_turn"
)

var commitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "novel_engine_story_commits_total",
		Help: "Committed story changes by reason and resulting status.",
	},
	[]string{"reason", "status"},
)

var turnsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "novel_engine_turns_rejected_total",
		Help: "Turn attempts that left the story unchanged, by error class.",
	},
	[]string{"reason"},
)

// lockStory takes the single-writer lock of a story. A busy story yields ErrActionPending.
// Callers never wait, so the set holds only stories with a write in progress.
func (s *storyServiceImpl) lockStory(id uuid.UUID) (func(), error) {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	if _, ok := s.busy[id]; ok {
		return nil, domain.ErrActionPending
	}
	s.busy[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.busyMu.Lock()
			delete(s.busy, id)
			s.busyMu.Unlock()
		})
	}, nil
}

// track registers ctx as the in-flight action of the story so CancelAction can abort it.
func (s *storyServiceImpl) track(ctx context.Context, id uuid.UUID) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	s.inflight.Store(id, cancel)
	return ctx, func() {
		s.inflight.Delete(id)
		cancel()
	}
}

// stateHash is the sha256 of the canonical JSON snapshot, excluding the hash itself.
func stateHash(story *domain.Story) (string, error) {
	cp := *story
	cp.StateHash = ""
	data, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("failed to encode story snapshot: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// stamp prepares next to replace the stored version.
func (s *storyServiceImpl) stamp(next *domain.Story) error {
	next.Version++
	next.UpdatedAt = s.now()
	hash, err := stateHash(next)
	if err != nil {
		return err
	}
	next.StateHash = hash
	return nil
}

// commit persists next as the successor of the stored story and fans the change out.
func (s *storyServiceImpl) commit(ctx context.Context, next *domain.Story, reason string, actorID uuid.UUID) error {
	if err := s.stamp(next); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}
	commitsTotal.WithLabelValues(reason, string(next.Status)).Inc()
	s.afterCommit(next, reason, actorID)
	return nil
}

// afterCommit publishes the committed state. Failures here never undo the commit.
func (s *storyServiceImpl) afterCommit(story *domain.Story, reason string, actorID uuid.UUID) {
	ctx := context.Background()
	log := s.logger.With(zap.Stringer("storyID", story.ID), zap.Int64("version", story.Version))

	event := messaging.TurnCommittedEvent{
		EventID:      uuid.NewString(),
		StoryID:      story.ID,
		Version:      story.Version,
		StateHash:    story.StateHash,
		Status:       story.Status,
		Reason:       reason,
		HistoryIndex: len(story.History) - 1,
		ActorID:      actorID,
		NextActorID:  story.CurrentActorID(),
		CommittedAt:  story.UpdatedAt,
	}
	if s.events != nil {
		if err := s.events.PublishTurnCommitted(ctx, event); err != nil {
			log.Warn("Failed to publish turn event", zap.Error(err))
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastStory(story.ID, MessageStoryUpdated, story.ForPlayers())
	}
	log.Info("Story committed", zap.String("reason", reason), zap.String("status", string(story.Status)))
}

// notifyTurn tells the co-op player holding the turn that they may act, if it changed hands.
func (s *storyServiceImpl) notifyTurn(prev, next *domain.Story) {
	if !next.CoOp || next.TurnCharacterID == uuid.Nil || prev.TurnCharacterID == next.TurnCharacterID {
		return
	}
	if next.Status == domain.StatusEnded {
		return
	}
	p := next.PlayerByCharacter(next.TurnCharacterID)
	c := next.Character(next.TurnCharacterID)
	if p == nil || c == nil {
		return
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastStory(next.ID, MessageYourTurn, map[string]any{
			"userId":      p.UserID,
			"characterId": c.ID,
		})
	}
	if s.notifier == nil {
		return
	}
	notice := notifier.TurnNotice{UserID: p.UserID, StoryID: next.ID, StoryTitle: next.Title, CharacterName: c.Name}
	go func() {
		if err := s.notifier.NotifyTurn(context.Background(), notice); err != nil {
			s.logger.Warn("Failed to push turn notification",
				zap.Stringer("storyID", notice.StoryID), zap.String("userID", notice.UserID), zap.Error(err))
		}
	}()
}

// load fetches a story the user takes part in.
func (s *storyServiceImpl) load(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error) {
	story, err := s.repo.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if !participates(story, userID) {
		return nil, fmt.Errorf("%w: story %s", domain.ErrNotFound, storyID)
	}
	return story, nil
}

func participates(story *domain.Story, userID string) bool {
	return story.OwnerID == userID || story.PlayerByUser(userID) != nil
}

// rejected counts a turn attempt that did not happen and passes the error through.
func rejected(err error) error {
	reason := "other"
	switch {
	case errors.Is(err, domain.ErrValidation):
		reason = "validation"
	case errors.Is(err, domain.ErrNotYourTurn):
		reason = "not_your_turn"
	case errors.Is(err, domain.ErrProposalRejected):
		reason = "proposal_rejected"
	case errors.Is(err, domain.ErrInsufficientResource):
		reason = "insufficient_resource"
	case errors.Is(err, domain.ErrActionPending):
		reason = "pending"
	case errors.Is(err, domain.ErrActionCancelled):
		reason = "cancelled"
	case errors.Is(err, domain.ErrInvalidStatus):
		reason = "invalid_status"
	}
	turnsRejectedTotal.WithLabelValues(reason).Inc()
	return err
}
