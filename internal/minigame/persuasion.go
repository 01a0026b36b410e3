package minigame

import (
	"fmt"
	"strings"

	"novel-engine/internal/domain"
)

// MeetsDifficulty is the persuasion check: no dice, just the stat against the difficulty.
func MeetsDifficulty(stat, difficulty int) bool {
	return stat >= difficulty
}

func (e *Engine) startPersuasion(p domain.MiniGameProposal) (*domain.Persuasion, error) {
	if len(p.Stages) == 0 {
		return nil, fmt.Errorf("%w: persuasion needs at least one stage", domain.ErrValidation)
	}
	if len(p.Stages) > e.rules.MaxPersuasionStages {
		return nil, fmt.Errorf("%w: persuasion has %d stages, max %d", domain.ErrValidation, len(p.Stages), e.rules.MaxPersuasionStages)
	}
	stages := make([]domain.PersuasionStage, len(p.Stages))
	for i, st := range p.Stages {
		if len(st.Options) == 0 {
			return nil, fmt.Errorf("%w: persuasion stage %d has no options", domain.ErrValidation, i)
		}
		opts := make([]domain.PersuasionOption, len(st.Options))
		for j, o := range st.Options {
			if !o.Stat.Valid() {
				return nil, fmt.Errorf("%w: persuasion option uses unknown stat %q", domain.ErrValidation, o.Stat)
			}
			opts[j] = domain.PersuasionOption{
				Text:       strings.TrimSpace(o.Text),
				Stat:       o.Stat,
				Difficulty: clamp(o.Difficulty, 1, e.rules.MaxPersuasionDifficulty),
			}
		}
		stages[i] = domain.PersuasionStage{Dialogue: strings.TrimSpace(st.Dialogue), Options: opts}
	}
	return &domain.Persuasion{
		NPCName:     strings.TrimSpace(p.NPCName),
		NPCAttitude: strings.TrimSpace(p.NPCAttitude),
		Stages:      stages,
	}, nil
}

func resolvePersuasion(g *domain.Persuasion, actor *domain.Character, m ChooseOption) (Result, error) {
	if actor == nil {
		return Result{}, fmt.Errorf("%w: persuasion needs an acting character", domain.ErrValidation)
	}
	if g.StageIndex < 0 || g.StageIndex >= len(g.Stages) {
		return Result{}, fmt.Errorf("%w: persuasion stage %d out of range", domain.ErrValidation, g.StageIndex)
	}
	stage := g.Stages[g.StageIndex]
	if m.Index < 0 || m.Index >= len(stage.Options) {
		return Result{}, fmt.Errorf("%w: option %d out of range", domain.ErrValidation, m.Index)
	}
	opt := stage.Options[m.Index]

	if !MeetsDifficulty(actor.Stats.Get(opt.Stat), opt.Difficulty) {
		return Result{
			Outcome:  domain.OutcomeLost,
			Dialogue: fmt.Sprintf("%s is not convinced.", g.NPCName),
		}, nil
	}
	if g.StageIndex == len(g.Stages)-1 {
		return Result{
			Outcome:  domain.OutcomeWon,
			Dialogue: fmt.Sprintf("%s is persuaded.", g.NPCName),
		}, nil
	}
	g.StageIndex++
	return Result{Outcome: domain.OutcomeActive, Dialogue: g.Stages[g.StageIndex].Dialogue}, nil
}
