package service

import (
	"context"
	"fmt"

	"novel-engine/internal/domain"
	"novel-engine/internal/messaging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *storyServiceImpl) JoinStory(ctx context.Context, userID string, storyID uuid.UUID, req JoinRequest) (*domain.Story, error) {
	unlock, err := s.lockStory(storyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	story, err := s.repo.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if !story.CoOp {
		return nil, fmt.Errorf("%w: story is not co-op", domain.ErrValidation)
	}
	if story.Status == domain.StatusEnded {
		return nil, fmt.Errorf("%w: story has ended", domain.ErrInvalidStatus)
	}

	now := s.now()
	next := story.Clone()
	characterID := req.CharacterID
	var tasks []messaging.AssetTask
	if characterID == uuid.Nil {
		if req.NewCharacter == nil {
			return nil, fmt.Errorf("%w: choose a character or describe a new one", domain.ErrValidation)
		}
		seed := *req.NewCharacter
		seed.Playable = true
		c, err := s.newCharacter(next, seed)
		if err != nil {
			return nil, err
		}
		next.Characters = append(next.Characters, c)
		if t, ok := s.portrait(next.ID, c); ok {
			tasks = append(tasks, t)
		}
		characterID = c.ID
	}
	if err := s.turns.Claim(next, userID, req.DisplayName, characterID, now); err != nil {
		return nil, err
	}
	if err := s.commit(ctx, next, "join", characterID); err != nil {
		return nil, err
	}
	s.enqueueAssets(ctx, tasks)
	s.notifyTurn(story, next)
	s.logger.Info("Player joined",
		zap.Stringer("storyID", storyID), zap.String("userID", userID), zap.Stringer("characterID", characterID))
	return next, nil
}

func (s *storyServiceImpl) LeaveStory(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error) {
	return s.mutate(ctx, userID, storyID, "leave", func(next *domain.Story) error {
		if !next.CoOp {
			return fmt.Errorf("%w: story is not co-op", domain.ErrValidation)
		}
		if p := next.PlayerByUser(userID); p != nil && next.ActiveMiniGame != nil && next.MiniGameActorID == p.CharacterID {
			s.logger.Info("Abandoning mini-game of departing player",
				zap.Stringer("storyID", storyID), zap.Stringer("characterID", p.CharacterID))
			next.CloseMiniGame()
		}
		_, err := s.turns.Release(next, userID)
		return err
	})
}
