package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"novel-engine/internal/domain"
	"novel-engine/internal/messaging"
	"novel-engine/internal/narrator"
	"novel-engine/pkg/taskmanager"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *storyServiceImpl) SubmitAction(ctx context.Context, userID string, storyID uuid.UUID, req ActionRequest) (*TurnResult, error) {
	res, err := s.runTurn(ctx, userID, storyID, req)
	if err != nil {
		return nil, rejected(err)
	}
	return res, nil
}

func (s *storyServiceImpl) SubmitActionAsync(ctx context.Context, userID string, storyID uuid.UUID, req ActionRequest) (uuid.UUID, error) {
	// Reject what can be rejected up front so the caller does not have to poll for it.
	text, err := s.validateAction(req.Text)
	if err != nil {
		return uuid.Nil, rejected(err)
	}
	req.Text = text
	story, err := s.load(ctx, userID, storyID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.precheck(story, userID, req.CharacterID); err != nil {
		return uuid.Nil, rejected(err)
	}

	taskID, err := s.tasks.Submit(ctx, storyID.String(), userID, func(taskCtx context.Context) (any, error) {
		res, err := s.runTurn(taskCtx, userID, storyID, req)
		if err != nil {
			return nil, err
		}
		// Task results are pushed to the client as is.
		res.Story = res.Story.ForPlayers()
		return res, nil
	})
	switch {
	case errors.Is(err, taskmanager.ErrKeyBusy):
		return uuid.Nil, rejected(domain.ErrActionPending)
	case err != nil:
		return uuid.Nil, fmt.Errorf("failed to queue action: %w", err)
	}
	s.logger.Debug("Action queued",
		zap.Stringer("storyID", storyID), zap.String("userID", userID), zap.Stringer("taskID", taskID))
	return taskID, nil
}

func (s *storyServiceImpl) GetActionTask(_ context.Context, userID string, taskID uuid.UUID) (taskmanager.Task, error) {
	t, err := s.tasks.Get(taskID)
	if err != nil {
		return taskmanager.Task{}, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	if t.OwnerID != userID {
		return taskmanager.Task{}, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	return t, nil
}

func (s *storyServiceImpl) CancelAction(ctx context.Context, userID string, storyID uuid.UUID) error {
	if _, err := s.load(ctx, userID, storyID); err != nil {
		return err
	}
	cancelled := false
	if _, err := s.tasks.CancelKey(storyID.String()); err == nil {
		cancelled = true
	}
	if v, ok := s.inflight.Load(storyID); ok {
		v.(context.CancelFunc)()
		cancelled = true
	}
	if !cancelled {
		return fmt.Errorf("%w: no pending action", domain.ErrNotFound)
	}
	s.logger.Info("Pending action cancelled", zap.Stringer("storyID", storyID), zap.String("userID", userID))
	return nil
}

func (s *storyServiceImpl) validateAction(text string) (string, error) {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n < s.rules.Turn.MinActionLength {
		return "", fmt.Errorf("%w: action is too short", domain.ErrValidation)
	}
	if n > s.rules.Turn.MaxActionLength {
		return "", fmt.Errorf("%w: action is longer than %d characters", domain.ErrValidation, s.rules.Turn.MaxActionLength)
	}
	return text, nil
}

// precheck applies every gate that does not need the narrator.
func (s *storyServiceImpl) precheck(story *domain.Story, userID string, characterID uuid.UUID) error {
	if story.Status != domain.StatusPlaying {
		return fmt.Errorf("%w: story is %s", domain.ErrInvalidStatus, story.Status)
	}
	if story.ActiveMiniGame != nil {
		return domain.ErrMiniGameActive
	}
	if err := s.turns.Gate(story, userID, characterID); err != nil {
		return err
	}
	return s.economy.CanAfford(story.Wallet, s.now())
}

// runTurn is one player action: gate, propose, reconcile on a copy, commit.
func (s *storyServiceImpl) runTurn(ctx context.Context, userID string, storyID uuid.UUID, req ActionRequest) (*TurnResult, error) {
	text, err := s.validateAction(req.Text)
	if err != nil {
		return nil, err
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
	if err := s.precheck(story, userID, req.CharacterID); err != nil {
		return nil, err
	}
	actor := story.Character(req.CharacterID)
	log := s.logger.With(zap.Stringer("storyID", storyID), zap.String("actor", actor.Name))

	wanted := s.objectives.Due(story)
	proposal, err := s.narrator.Propose(ctx, narrator.Request{
		Story:           story,
		Actor:           actor,
		Action:          text,
		UserID:          userID,
		ObjectiveWanted: wanted,
	})
	if ctx.Err() != nil {
		log.Info("Turn abandoned while waiting for the narrator")
		return nil, fmt.Errorf("%w: %w", domain.ErrActionCancelled, ctx.Err())
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := story.Clone()
	res, tasks, err := s.reconcile(next, next.Character(actor.ID), proposal, text, wanted, now)
	if err != nil {
		return nil, err
	}
	if next.Status == domain.StatusChapterEnd {
		s.closeChapter(ctx, next)
	}
	if ctx.Err() != nil {
		log.Info("Turn abandoned before commit")
		return nil, fmt.Errorf("%w: %w", domain.ErrActionCancelled, ctx.Err())
	}

	if err := s.commit(ctx, next, "turn", actor.ID); err != nil {
		return nil, err
	}
	s.enqueueAssets(ctx, tasks)
	s.notifyTurn(story, next)

	res.Story = next
	return res, nil
}

// reconcile applies a proposal to next, validating and clamping every part of it.
// Parts that reference unknown entities are skipped; the turn itself still happens.
func (s *storyServiceImpl) reconcile(next *domain.Story, actor *domain.Character, p *domain.Proposal, text string, objectiveWanted bool, now time.Time) (*TurnResult, []messaging.AssetTask, error) {
	log := s.logger.With(zap.Stringer("storyID", next.ID))
	res := &TurnResult{}
	var tasks []messaging.AssetTask

	wallet, err := s.economy.ChargeAction(next.Wallet, now)
	if err != nil {
		return nil, nil, err
	}
	next.Wallet = wallet

	for _, d := range p.StatDeltas {
		r, err := s.ledger.ApplyToStory(next, d)
		if err != nil {
			log.Warn("Skipping stat delta", zap.String("character", d.Character), zap.Error(err))
			continue
		}
		if len(r.Clamped) > 0 {
			log.Warn("Clamped proposed values", zap.Stringer("characterID", r.CharacterID), zap.Strings("fields", r.Clamped))
		}
	}

	var changes []domain.RelationshipChange
	for _, d := range p.RelationshipDeltas {
		from, to := next.FindCharacter(d.From), next.FindCharacter(d.To)
		if from == nil || to == nil {
			log.Warn("Skipping relationship delta for unknown character", zap.String("from", d.From), zap.String("to", d.To))
			continue
		}
		pairs := [][2]uuid.UUID{{from.ID, to.ID}}
		if d.Mutual {
			pairs = append(pairs, [2]uuid.UUID{to.ID, from.ID})
		}
		for _, pair := range pairs {
			ch, ev, err := s.relationships.AdjustProposed(next, pair[0], pair[1], d.Delta)
			if err != nil {
				log.Warn("Skipping relationship delta", zap.Error(err))
				continue
			}
			changes = append(changes, ch)
			if ev != nil && next.PendingRelationshipEvent == nil {
				next.PendingRelationshipEvent = ev
				res.RelationshipEvent = ev
			}
		}
	}

	fromLocation := next.LocationName
	if p.Location != "" && !strings.EqualFold(p.Location, next.LocationName) {
		tasks = append(tasks, s.enterScene(next, p.Location, p.LocationDescription, now))
	}
	if p.AdvanceTime {
		next.TimeOfDay = next.TimeOfDay.Next()
	}
	if sc := p.Scenario; sc != nil {
		if c := next.FindCharacter(sc.Character); c != nil {
			if sc.Clear {
				c.CurrentScenario = nil
			} else {
				c.CurrentScenario = &domain.Scenario{
					Description:               sc.Description,
					InteractingNPCName:        sc.InteractingNPCName,
					RequiredNextCharacterName: sc.RequiredNextCharacterName,
				}
			}
		}
	}

	s.objectives.Tick(next)
	for _, ev := range p.ObjectiveEvents {
		if ev.Type != domain.ObjectiveEventComplete {
			continue
		}
		id, ok := resolveObjective(next, ev)
		if !ok {
			log.Warn("Skipping completion of unknown objective", zap.String("objective", ev.ObjectiveID))
			continue
		}
		done, err := s.objectives.Complete(next, id, now)
		if err != nil {
			log.Warn("Skipping objective completion", zap.Error(err))
			continue
		}
		if done {
			res.CompletedIDs = append(res.CompletedIDs, id)
		}
	}
	if objectiveWanted {
		for _, ev := range p.ObjectiveEvents {
			if ev.Type != domain.ObjectiveEventNew {
				continue
			}
			o, err := s.objectives.Offer(next, ev.Description, ev.TokenReward, now)
			if err != nil {
				log.Warn("Skipping objective offer", zap.Error(err))
				continue
			}
			if o != nil {
				res.NewObjectives = append(res.NewObjectives, *o)
			}
		}
	}

	if p.StartMiniGame != nil && next.ActiveMiniGame == nil {
		game, err := s.miniGames.Start(*p.StartMiniGame, actor)
		if err != nil {
			log.Warn("Ignoring invalid mini-game proposal", zap.Error(err))
		} else {
			next.OpenMiniGame(game, actor.ID)
			res.MiniGameStarted = true
		}
	}

	entry := domain.HistoryEntry{
		ID:                  uuid.New(),
		Index:               len(next.History),
		Kind:                domain.EntryAction,
		ActorID:             actor.ID,
		ChoiceText:          text,
		OutcomeText:         p.NarrativeText,
		RelationshipChanges: changes,
		CreatedAt:           now,
	}
	if next.LocationName != fromLocation {
		entry.FromLocation = fromLocation
		entry.ToLocation = next.LocationName
	}
	next.History = append(next.History, entry)
	res.Entry = entry

	// The actor who opened a mini-game keeps the turn until it ends.
	if next.ActiveMiniGame == nil {
		s.turns.Next(next, p.NextActor)
	}

	if p.Closure {
		next.EndingText = strings.TrimSpace(p.EndingText)
		if next.EndingText == "" {
			next.EndingText = p.NarrativeText
		}
	}
	s.settleStatus(next, p.Closure)
	return res, tasks, nil
}

// resolveObjective finds an active or completed objective by id or by description.
func resolveObjective(story *domain.Story, ev domain.ObjectiveEvent) (uuid.UUID, bool) {
	if id, err := uuid.Parse(strings.TrimSpace(ev.ObjectiveID)); err == nil {
		for _, o := range story.Objectives {
			if o.ID == id {
				return id, true
			}
		}
		return uuid.Nil, false
	}
	ref := strings.TrimSpace(ev.ObjectiveID)
	if ref == "" {
		ref = strings.TrimSpace(ev.Description)
	}
	for _, o := range story.Objectives {
		if strings.EqualFold(o.Description, ref) {
			return o.ID, true
		}
	}
	return uuid.Nil, false
}

// settleStatus re-evaluates the status after a history entry was appended.
// Closure wins over a chapter boundary, which wins over a relationship event.
func (s *storyServiceImpl) settleStatus(next *domain.Story, closure bool) {
	switch {
	case closure:
		next.Status = domain.StatusEnded
		next.CloseMiniGame()
	case len(next.History) > 0 && len(next.History)%s.rules.Turn.ChapterLength == 0:
		next.Status = domain.StatusChapterEnd
	case next.PendingRelationshipEvent != nil:
		next.Status = domain.StatusRelationshipEvent
	default:
		next.Status = domain.StatusPlaying
	}
}

// closeChapter stores the chapter summary. A narrator failure does not block the chapter end.
func (s *storyServiceImpl) closeChapter(ctx context.Context, next *domain.Story) {
	summary, err := s.narrator.SummarizeChapter(ctx, next, s.rules.Turn.ChapterLength)
	if err != nil || strings.TrimSpace(summary) == "" {
		s.logger.Warn("Chapter summary unavailable, using fallback",
			zap.Stringer("storyID", next.ID), zap.Int("chapter", next.Chapter), zap.Error(err))
		summary = fmt.Sprintf("Chapter %d ends.", next.Chapter)
	}
	next.ChapterSummaries = append(next.ChapterSummaries, domain.ChapterSummary{
		Chapter:      next.Chapter,
		Summary:      strings.TrimSpace(summary),
		HistoryIndex: len(next.History) - 1,
	})
}
