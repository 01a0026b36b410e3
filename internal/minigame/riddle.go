package minigame

import (
	"fmt"
	"strings"

	"novel-engine/internal/domain"
)

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func startRiddle(p domain.MiniGameProposal) (*domain.RiddleChallenge, error) {
	q := strings.TrimSpace(p.Question)
	if q == "" {
		return nil, fmt.Errorf("%w: riddle needs a question", domain.ErrValidation)
	}
	answers := make([]string, 0, len(p.Answers))
	for _, a := range p.Answers {
		if a = strings.TrimSpace(a); a != "" {
			answers = append(answers, a)
		}
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: riddle needs at least one answer", domain.ErrValidation)
	}
	return &domain.RiddleChallenge{Question: q, AcceptableAnswers: answers}, nil
}

func resolveRiddle(g *domain.RiddleChallenge, m Answer) (Result, error) {
	attempt := normalizeAnswer(m.Text)
	if attempt == "" {
		return Result{}, fmt.Errorf("%w: empty answer", domain.ErrValidation)
	}
	g.Attempts++
	for _, a := range g.AcceptableAnswers {
		if normalizeAnswer(a) == attempt {
			return Result{Outcome: domain.OutcomeWon, Dialogue: "Correct."}, nil
		}
	}
	return Result{Outcome: domain.OutcomeActive, Dialogue: "That is not the answer."}, nil
}
