package service

import (
	"context"
	"fmt"

	"novel-engine/internal/domain"
	"novel-engine/internal/minigame"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *storyServiceImpl) PlayMiniGame(ctx context.Context, userID string, storyID uuid.UUID, req MiniGameRequest) (*MiniGameResult, error) {
	res, err := s.playMiniGame(ctx, userID, storyID, req)
	if err != nil {
		return nil, rejected(err)
	}
	return res, nil
}

func (s *storyServiceImpl) playMiniGame(ctx context.Context, userID string, storyID uuid.UUID, req MiniGameRequest) (*MiniGameResult, error) {
	if req.Move == nil {
		return nil, fmt.Errorf("%w: missing move", domain.ErrValidation)
	}
	unlock, err := s.lockStory(storyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, done := s.track(ctx, storyID)
	defer done()

	story, err := s.load(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	if story.Status != domain.StatusPlaying {
		return nil, fmt.Errorf("%w: story is %s", domain.ErrInvalidStatus, story.Status)
	}
	if story.ActiveMiniGame == nil {
		return nil, domain.ErrNoMiniGame
	}
	if owner := story.MiniGameActorID; owner != uuid.Nil && owner != req.CharacterID {
		return nil, fmt.Errorf("%w: the mini-game is played by %s", domain.ErrNotYourTurn, owner)
	}
	if err := s.turns.Gate(story, userID, req.CharacterID); err != nil {
		return nil, err
	}

	outcome, err := s.miniGames.Resolve(ctx, story.ActiveMiniGame, story.Character(req.CharacterID), req.Move)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrActionCancelled, ctx.Err())
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := story.Clone()
	next.ActiveMiniGame = outcome.Game
	result := &MiniGameResult{
		Outcome:        outcome.Outcome,
		Dialogue:       outcome.Dialogue,
		PatienceDamage: outcome.PatienceDamage,
		NPCAction:      outcome.NPCAction,
		ChallengeCount: outcome.ChallengeCount,
		Feedback:       outcome.Feedback,
	}

	reason := "minigame_move"
	if outcome.Outcome.Terminal() {
		reason = "minigame_end"
		actor := next.Character(req.CharacterID)
		lr := s.ledger.ApplyDelta(actor, s.miniGames.Reward(outcome.Game, outcome.Outcome))
		if len(lr.Clamped) > 0 {
			s.logger.Debug("Mini-game reward clamped",
				zap.Stringer("storyID", storyID), zap.Strings("fields", lr.Clamped))
		}
		entry := domain.HistoryEntry{
			ID:          uuid.New(),
			Index:       len(next.History),
			Kind:        domain.EntryMiniGame,
			ActorID:     actor.ID,
			ChoiceText:  string(outcome.Game.Kind()),
			OutcomeText: minigame.Describe(outcome.Game, outcome.Outcome),
			CreatedAt:   now,
		}
		next.History = append(next.History, entry)
		next.CloseMiniGame()
		result.Entry = &entry

		s.turns.Next(next, "")
		s.settleStatus(next, false)
		if next.Status == domain.StatusChapterEnd {
			s.closeChapter(ctx, next)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrActionCancelled, ctx.Err())
		}
	}

	if err := s.commit(ctx, next, reason, req.CharacterID); err != nil {
		return nil, err
	}
	s.notifyTurn(story, next)
	result.Story = next
	return result, nil
}
