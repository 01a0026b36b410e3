package service

import (
	"context"
	"fmt"
	"strings"

	"novel-engine/internal/domain"
	"novel-engine/internal/economy"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *storyServiceImpl) walletView(w domain.Wallet) *WalletView {
	now := s.now()
	w = s.economy.Regenerate(w, now)
	v := &WalletView{Wallet: w}
	if at := s.economy.NextTokenAt(w, now); !at.IsZero() {
		v.NextTokenAt = &at
	}
	return v
}

func (s *storyServiceImpl) GetWallet(ctx context.Context, userID string, storyID uuid.UUID) (*WalletView, error) {
	story, err := s.load(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	return s.walletView(story.Wallet), nil
}

func (s *storyServiceImpl) PurchaseBookmark(ctx context.Context, userID string, storyID uuid.UUID) (*WalletView, error) {
	next, err := s.mutate(ctx, userID, storyID, "bookmark_purchase", func(next *domain.Story) error {
		w, err := s.economy.PurchaseBookmark(next.Wallet, s.now())
		if err != nil {
			return err
		}
		next.Wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.walletView(next.Wallet), nil
}

// CreateBookmark spends one bookmark and stores a checkpoint of the committed state.
func (s *storyServiceImpl) CreateBookmark(ctx context.Context, userID string, storyID uuid.UUID, label string) (*domain.Bookmark, error) {
	unlock, err := s.lockStory(storyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	story, err := s.load(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	if story.Status == domain.StatusIdle {
		return nil, fmt.Errorf("%w: story has not started", domain.ErrInvalidStatus)
	}

	now := s.now()
	next := story.Clone()
	w, err := s.economy.Consume(next.Wallet, economy.Bookmark, 1, now)
	if err != nil {
		return nil, err
	}
	next.Wallet = w
	if err := s.stamp(next); err != nil {
		return nil, err
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = fmt.Sprintf("Chapter %d, turn %d", story.Chapter, len(story.History))
	}
	bm := &domain.Bookmark{
		ID:           uuid.New(),
		StoryID:      storyID,
		OwnerID:      userID,
		Label:        label,
		HistoryIndex: len(story.History),
		Snapshot:     story.Clone(),
		CreatedAt:    now,
	}
	if err := s.repo.SaveWithBookmark(ctx, next, bm); err != nil {
		return nil, fmt.Errorf("failed to save bookmark: %w", err)
	}
	commitsTotal.WithLabelValues("bookmark", string(next.Status)).Inc()
	s.afterCommit(next, "bookmark", uuid.Nil)
	s.logger.Info("Bookmark created", zap.Stringer("storyID", storyID), zap.Stringer("bookmarkID", bm.ID))
	return bm, nil
}

func (s *storyServiceImpl) ListBookmarks(ctx context.Context, userID string, storyID uuid.UUID) ([]domain.Bookmark, error) {
	if _, err := s.load(ctx, userID, storyID); err != nil {
		return nil, err
	}
	return s.repo.ListBookmarks(ctx, storyID)
}

// ForkFromBookmark starts a new story from a checkpoint. The original story is left untouched.
func (s *storyServiceImpl) ForkFromBookmark(ctx context.Context, userID string, bookmarkID uuid.UUID) (*domain.Story, error) {
	bm, err := s.repo.GetBookmark(ctx, bookmarkID)
	if err != nil {
		return nil, err
	}
	if bm.OwnerID != userID || bm.Snapshot == nil {
		return nil, fmt.Errorf("%w: bookmark %s", domain.ErrNotFound, bookmarkID)
	}

	now := s.now()
	fork := bm.Snapshot.Clone()
	fork.ID = uuid.New()
	fork.OwnerID = userID
	fork.Title = bm.Snapshot.Title + " (" + bm.Label + ")"
	fork.Wallet = s.economy.NewWallet(now)
	fork.CreatedAt = now
	fork.UpdatedAt = now
	fork.Version = 1
	if fork.CoOp {
		// Only the forking user comes along.
		mine := fork.PlayerByUser(userID)
		fork.Players = nil
		fork.TurnCharacterID = uuid.Nil
		if mine != nil {
			if err := s.turns.Claim(fork, userID, mine.DisplayName, mine.CharacterID, now); err != nil {
				return nil, err
			}
		} else if err := s.turns.Claim(fork, userID, "", fork.ActiveCharacterID, now); err != nil {
			return nil, err
		}
	}
	if fork.ActiveMiniGame != nil && fork.MiniGameActorID != fork.CurrentActorID() {
		fork.CloseMiniGame()
	}
	hash, err := stateHash(fork)
	if err != nil {
		return nil, err
	}
	fork.StateHash = hash
	if err := s.repo.Create(ctx, fork); err != nil {
		return nil, fmt.Errorf("failed to create forked story: %w", err)
	}
	s.logger.Info("Story forked from bookmark",
		zap.Stringer("bookmarkID", bookmarkID), zap.Stringer("sourceStoryID", bm.StoryID), zap.Stringer("storyID", fork.ID))
	return fork, nil
}
