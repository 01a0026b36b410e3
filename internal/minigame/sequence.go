package minigame

import (
	"fmt"
	"strings"

	"novel-engine/internal/domain"
)

func (e *Engine) startSequence(p domain.MiniGameProposal) (*domain.SequencePuzzle, error) {
	if len(p.Sequence) == 0 || len(p.Sequence) > e.rules.MaxSequenceLength {
		return nil, fmt.Errorf("%w: sequence length must be between 1 and %d", domain.ErrValidation, e.rules.MaxSequenceLength)
	}
	seq := make([]string, len(p.Sequence))
	for i, s := range p.Sequence {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("%w: empty symbol at position %d", domain.ErrValidation, i)
		}
		seq[i] = s
	}
	difficulty := p.Difficulty
	if difficulty < 1 {
		difficulty = 1
	}
	return &domain.SequencePuzzle{TargetSequence: seq, Difficulty: difficulty}, nil
}

// resolveSequence compares the attempt element-wise. Feedback only says right or wrong per position.
func resolveSequence(g *domain.SequencePuzzle, m SubmitSequence) (Result, error) {
	if len(m.Symbols) != len(g.TargetSequence) {
		return Result{}, fmt.Errorf("%w: attempt has %d symbols, expected %d", domain.ErrValidation, len(m.Symbols), len(g.TargetSequence))
	}
	g.Attempts++
	feedback := make([]bool, len(g.TargetSequence))
	solved := true
	for i, want := range g.TargetSequence {
		feedback[i] = strings.TrimSpace(m.Symbols[i]) == want
		solved = solved && feedback[i]
	}
	outcome := domain.OutcomeActive
	if solved {
		outcome = domain.OutcomeWon
	}
	return Result{Outcome: outcome, Feedback: feedback}, nil
}
