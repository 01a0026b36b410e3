package service

import (
	"context"
	"fmt"
	"strings"

	"novel-engine/internal/domain"
	"novel-engine/internal/messaging"
	"novel-engine/internal/relationship"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *storyServiceImpl) CreateStory(ctx context.Context, userID string, req CreateStoryRequest) (*domain.Story, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: empty user id", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.LocationName) == "" {
		return nil, fmt.Errorf("%w: title and location are required", domain.ErrValidation)
	}
	if len(req.Characters) == 0 {
		return nil, fmt.Errorf("%w: a story needs at least one character", domain.ErrValidation)
	}

	now := s.now()
	story := &domain.Story{
		ID:               uuid.New(),
		OwnerID:          userID,
		Title:            strings.TrimSpace(req.Title),
		Premise:          strings.TrimSpace(req.Premise),
		Status:           domain.StatusIdle,
		Chapter:          1,
		ChapterSummaries: []domain.ChapterSummary{},
		Objectives:       []domain.Objective{},
		History:          []domain.HistoryEntry{},
		TimeOfDay:        domain.Morning,
		LocationName:     strings.TrimSpace(req.LocationName),
		CoOp:             req.CoOp,
		Wallet:           s.economy.NewWallet(now),
		CreatedAt:        now,
	}
	s.objectives.Reset(story)

	var tasks []messaging.AssetTask
	for _, seed := range req.Characters {
		c, err := s.newCharacter(story, seed)
		if err != nil {
			return nil, err
		}
		story.Characters = append(story.Characters, c)
		if t, ok := s.portrait(story.ID, c); ok {
			tasks = append(tasks, t)
		}
	}

	active, err := pickActive(story, req.ActiveCharacter)
	if err != nil {
		return nil, err
	}
	story.ActiveCharacterID = active.ID
	if story.CoOp {
		if err := s.turns.Claim(story, userID, req.DisplayName, active.ID, now); err != nil {
			return nil, err
		}
	}
	tasks = append(tasks, s.enterScene(story, story.LocationName, req.LocationDescription, now))

	story.Version = 1
	story.UpdatedAt = now
	hash, err := stateHash(story)
	if err != nil {
		return nil, err
	}
	story.StateHash = hash
	if err := s.repo.Create(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}
	s.enqueueAssets(ctx, tasks)

	s.logger.Info("Story created",
		zap.Stringer("storyID", story.ID), zap.String("ownerID", userID),
		zap.Int("characters", len(story.Characters)), zap.Bool("coOp", story.CoOp))
	return story, nil
}

func (s *storyServiceImpl) newCharacter(story *domain.Story, seed CharacterSeed) (*domain.Character, error) {
	name := strings.TrimSpace(seed.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: character name is required", domain.ErrValidation)
	}
	if story.FindCharacter(name) != nil {
		return nil, fmt.Errorf("%w: duplicate character name %q", domain.ErrValidation, name)
	}
	c := s.ledger.NewCharacter(name, seed.Description, seed.Playable)
	for _, st := range domain.AllStats {
		if v := seed.Stats.Get(st); v > 0 {
			c.Stats.Set(st, v)
		}
	}
	for _, sk := range seed.Skills {
		if sk = strings.TrimSpace(sk); sk != "" && !c.HasSkill(sk) {
			c.Skills = append(c.Skills, sk)
		}
	}
	s.ledger.Normalize(c)
	return c, nil
}

// pickActive resolves the owner's character: the named one, or the first playable.
func pickActive(story *domain.Story, ref string) (*domain.Character, error) {
	if strings.TrimSpace(ref) != "" {
		c := story.FindCharacter(ref)
		if c == nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrCharacterNotFound, ref)
		}
		if !c.CanAct() {
			return nil, fmt.Errorf("%w: %s is not playable", domain.ErrValidation, c.Name)
		}
		return c, nil
	}
	for _, c := range story.Characters {
		if c.CanAct() {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: a story needs a playable character", domain.ErrValidation)
}

func (s *storyServiceImpl) StartStory(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error) {
	unlock, err := s.lockStory(storyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	story, err := s.load(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	if story.OwnerID != userID {
		return nil, fmt.Errorf("%w: only the owner can start the story", domain.ErrNotYourTurn)
	}
	if story.Status != domain.StatusIdle {
		return nil, fmt.Errorf("%w: story is %s", domain.ErrInvalidStatus, story.Status)
	}
	actor := story.Character(story.CurrentActorID())
	if actor == nil || !actor.CanAct() {
		return nil, fmt.Errorf("%w: no active character assigned", domain.ErrValidation)
	}

	next := story.Clone()
	next.Status = domain.StatusPlaying
	if err := s.commit(ctx, next, "start", uuid.Nil); err != nil {
		return nil, err
	}
	s.notifyTurn(story, next)
	return next, nil
}

func (s *storyServiceImpl) GetStory(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error) {
	story, err := s.load(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	story.Wallet = s.economy.Regenerate(story.Wallet, s.now())
	return story, nil
}

func (s *storyServiceImpl) ListStories(ctx context.Context, userID string, limit, offset int) ([]domain.StorySummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForUser(ctx, userID, limit, offset)
}

func (s *storyServiceImpl) AcknowledgeRelationshipEvent(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error) {
	return s.mutate(ctx, userID, storyID, "relationship_ack", func(next *domain.Story) error {
		if next.Status != domain.StatusRelationshipEvent {
			return fmt.Errorf("%w: no relationship event to acknowledge", domain.ErrInvalidStatus)
		}
		next.PendingRelationshipEvent = nil
		next.Status = domain.StatusPlaying
		return nil
	})
}

func (s *storyServiceImpl) ContinueChapter(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error) {
	return s.mutate(ctx, userID, storyID, "chapter_continue", func(next *domain.Story) error {
		if next.Status != domain.StatusChapterEnd {
			return fmt.Errorf("%w: chapter has not ended", domain.ErrInvalidStatus)
		}
		next.Chapter++
		if next.PendingRelationshipEvent != nil {
			next.Status = domain.StatusRelationshipEvent
		} else {
			next.Status = domain.StatusPlaying
		}
		return nil
	})
}

func (s *storyServiceImpl) SpendStatPoint(ctx context.Context, userID string, storyID, characterID uuid.UUID, stat domain.Stat) (*domain.Story, error) {
	return s.mutate(ctx, userID, storyID, "stat_point", func(next *domain.Story) error {
		c := next.Character(characterID)
		if c == nil {
			return fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, characterID)
		}
		if !controls(next, userID, characterID) {
			return fmt.Errorf("%w: character %s is not yours", domain.ErrNotYourTurn, characterID)
		}
		return s.ledger.SpendStatPoint(c, stat)
	})
}

// controls reports whether userID plays characterID.
func controls(story *domain.Story, userID string, characterID uuid.UUID) bool {
	if story.CoOp {
		p := story.PlayerByUser(userID)
		return p != nil && p.CharacterID == characterID
	}
	return story.OwnerID == userID
}

func (s *storyServiceImpl) RelationshipHistory(ctx context.Context, userID string, storyID, characterA, characterB uuid.UUID) ([]domain.HistoryEntry, error) {
	story, err := s.load(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	if story.Character(characterA) == nil || story.Character(characterB) == nil {
		return nil, domain.ErrCharacterNotFound
	}
	return relationship.History(story.History, characterA, characterB), nil
}

// mutate runs a short, narrator-free change under the story lock and commits it.
func (s *storyServiceImpl) mutate(ctx context.Context, userID string, storyID uuid.UUID, reason string, fn func(next *domain.Story) error) (*domain.Story, error) {
	unlock, err := s.lockStory(storyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	story, err := s.load(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	next := story.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := s.commit(ctx, next, reason, uuid.Nil); err != nil {
		return nil, err
	}
	s.notifyTurn(story, next)
	return next, nil
}
