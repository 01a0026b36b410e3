// Package turn решает, чьё действие история примет следующим.
package turn

import (
	"fmt"
	"strings"
	"time"

	"novel-engine/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Arbitrator определяет очередность ходов: владелец в одиночной игре, захваченные персонажи в кооперативе.
type Arbitrator struct {
	logger *zap.Logger
}

func NewArbitrator(logger *zap.Logger) *Arbitrator {
	return &Arbitrator{logger: logger.Named("TurnArbitrator")}
}

// Gate возвращает ErrNotYourTurn, если userID сейчас не может ходить за characterID. История не изменяется.
func (a *Arbitrator) Gate(story *domain.Story, userID string, characterID uuid.UUID) error {
	if !story.CoOp {
		if story.OwnerID != userID {
			return fmt.Errorf("%w: user does not own this story", domain.ErrNotYourTurn)
		}
		if characterID != story.ActiveCharacterID {
			return fmt.Errorf("%w: %s is not the active character", domain.ErrNotYourTurn, characterID)
		}
		return nil
	}
	p := story.PlayerByUser(userID)
	if p == nil {
		return fmt.Errorf("%w: user has not joined this story", domain.ErrNotYourTurn)
	}
	if p.CharacterID != characterID {
		return fmt.Errorf("%w: character %s is not claimed by this user", domain.ErrNotYourTurn, characterID)
	}
	if story.TurnCharacterID != characterID {
		return fmt.Errorf("%w: waiting for %s", domain.ErrNotYourTurn, story.TurnCharacterID)
	}
	return nil
}

// Claim закрепляет за userID свободного играбельного персонажа. Первый захват также получает ход.
func (a *Arbitrator) Claim(story *domain.Story, userID, displayName string, characterID uuid.UUID, now time.Time) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", domain.ErrValidation)
	}
	if story.PlayerByUser(userID) != nil {
		return domain.ErrAlreadyJoined
	}
	c := story.Character(characterID)
	if c == nil {
		return fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, characterID)
	}
	if !c.CanAct() {
		return fmt.Errorf("%w: %s is not playable", domain.ErrValidation, c.Name)
	}
	if story.PlayerByCharacter(characterID) != nil {
		return fmt.Errorf("%w: %s", domain.ErrCharacterClaimed, c.Name)
	}
	story.Players = append(story.Players, domain.Player{
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		CharacterID: characterID,
		JoinedAt:    now,
	})
	if story.TurnCharacterID == uuid.Nil {
		story.TurnCharacterID = characterID
	}
	a.logger.Info("Character claimed",
		zap.Stringer("storyID", story.ID), zap.String("userID", userID), zap.Stringer("characterID", characterID))
	return nil
}

// Release освобождает персонажа пользователя. Если ход был у него, следующий выбирается сразу.
// Возвращает персонажа, у которого ход после этого.
func (a *Arbitrator) Release(story *domain.Story, userID string) (uuid.UUID, error) {
	idx := -1
	for i, p := range story.Players {
		if p.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return story.TurnCharacterID, fmt.Errorf("%w: user has not joined this story", domain.ErrNotFound)
	}
	leaving := story.Players[idx].CharacterID
	heldTurn := story.TurnCharacterID == leaving

	next := uuid.Nil
	if heldTurn {
		next = a.roundRobin(story, leaving, leaving)
	}
	story.Players = append(story.Players[:idx], story.Players[idx+1:]...)
	if heldTurn {
		story.TurnCharacterID = next
	}
	a.logger.Info("Character released",
		zap.Stringer("storyID", story.ID), zap.String("userID", userID),
		zap.Bool("heldTurn", heldTurn), zap.Stringer("turnCharacterID", story.TurnCharacterID))
	return story.TurnCharacterID, nil
}

// Next выбирает, кто ходит после зафиксированного хода: предложенный персонаж, если он может действовать,
// иначе следующий захваченный персонаж в порядке присоединения.
func (a *Arbitrator) Next(story *domain.Story, suggestion string) uuid.UUID {
	if !story.CoOp {
		if c := story.FindCharacter(suggestion); c != nil && c.CanAct() {
			story.ActiveCharacterID = c.ID
		}
		return story.ActiveCharacterID
	}
	if c := story.FindCharacter(suggestion); c != nil && c.CanAct() && story.PlayerByCharacter(c.ID) != nil {
		story.TurnCharacterID = c.ID
		return c.ID
	}
	story.TurnCharacterID = a.roundRobin(story, story.TurnCharacterID, uuid.Nil)
	return story.TurnCharacterID
}

// roundRobin возвращает следующего за current играбельного персонажа в порядке присоединения, пропуская exclude.
// Если current единственный кандидат, возвращается он же.
func (a *Arbitrator) roundRobin(story *domain.Story, current, exclude uuid.UUID) uuid.UUID {
	order := make([]uuid.UUID, 0, len(story.Players))
	start := -1
	for _, p := range story.Players {
		if p.CharacterID == current {
			start = len(order)
		}
		if p.CharacterID == exclude {
			continue
		}
		if c := story.Character(p.CharacterID); c != nil && c.CanAct() {
			order = append(order, p.CharacterID)
		}
	}
	if len(order) == 0 {
		return uuid.Nil
	}
	if start < 0 {
		return order[0]
	}
	// start указывает на позицию current (или где он был бы, если исключён).
	if current == exclude || start >= len(order) || order[start] != current {
		return order[start%len(order)]
	}
	return order[(start+1)%len(order)]
}
