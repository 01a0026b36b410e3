// Package objective ведёт квестовые цели и выплачивает награды за них.
package objective

import (
	"fmt"
	"strings"
	"time"

	"novel-engine/internal/config"
	"novel-engine/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Crediter принимает награды за цели.
type Crediter interface {
	Credit(w *domain.Wallet, tokens int)
}

// Tracker отсчитывает ходы до следующей цели и следит за лимитом активных целей.
type Tracker struct {
	rules    config.ObjectiveRules
	crediter Crediter
	logger   *zap.Logger
}

func NewTracker(rules config.ObjectiveRules, crediter Crediter, logger *zap.Logger) *Tracker {
	return &Tracker{rules: rules, crediter: crediter, logger: logger.Named("ObjectiveTracker")}
}

// Reset запускает отсчёт заново.
func (t *Tracker) Reset(story *domain.Story) {
	story.ObjectiveCountdown = t.rules.Interval
}

// Tick учитывает один зафиксированный ход. Сообщает, можно ли сейчас запросить новую цель.
func (t *Tracker) Tick(story *domain.Story) bool {
	if story.ObjectiveCountdown > 0 {
		story.ObjectiveCountdown--
	}
	return t.Due(story)
}

// Due сообщает, что отсчёт закончен и есть место для ещё одной активной цели.
func (t *Tracker) Due(story *domain.Story) bool {
	return story.ObjectiveCountdown == 0 && story.ActiveObjectives() < t.rules.MaxActive
}

// Offer добавляет новую активную цель. При достигнутом лимите возвращает nil без ошибки.
func (t *Tracker) Offer(story *domain.Story, description string, reward int, now time.Time) (*domain.Objective, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: objective needs a description", domain.ErrValidation)
	}
	if story.ActiveObjectives() >= t.rules.MaxActive {
		t.logger.Debug("Objective cap reached, ignoring offer", zap.Stringer("storyID", story.ID))
		return nil, nil
	}
	switch {
	case reward <= 0:
		reward = t.rules.DefaultReward
	case reward > t.rules.MaxReward:
		reward = t.rules.MaxReward
	}
	story.Objectives = append(story.Objectives, domain.Objective{
		ID:          uuid.New(),
		Description: description,
		Status:      domain.ObjectiveActive,
		TokenReward: reward,
		CreatedAt:   now,
	})
	t.Reset(story)
	return &story.Objectives[len(story.Objectives)-1], nil
}

// Complete отмечает цель выполненной и начисляет награду. Повторный вызов ничего не делает.
// Сообщает, выполнил ли переход именно этот вызов.
func (t *Tracker) Complete(story *domain.Story, id uuid.UUID, now time.Time) (bool, error) {
	for i := range story.Objectives {
		o := &story.Objectives[i]
		if o.ID != id {
			continue
		}
		if o.Status == domain.ObjectiveCompleted {
			return false, nil
		}
		o.Status = domain.ObjectiveCompleted
		completedAt := now
		o.CompletedAt = &completedAt
		t.crediter.Credit(&story.Wallet, o.TokenReward)
		t.logger.Info("Objective completed",
			zap.Stringer("storyID", story.ID), zap.Stringer("objectiveID", id), zap.Int("reward", o.TokenReward))
		return true, nil
	}
	return false, fmt.Errorf("%w: objective %s", domain.ErrNotFound, id)
}
