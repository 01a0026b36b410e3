package narrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"novel-engine/internal/domain"
	"novel-engine/pkg/ai"
)

// PromptBuilder renders story state into narrator input, trimming history to a token budget.
type PromptBuilder struct {
	tokens        *ai.TokenCounter
	historyBudget int
}

func NewPromptBuilder(tokens *ai.TokenCounter, historyBudget int) *PromptBuilder {
	return &PromptBuilder{tokens: tokens, historyBudget: historyBudget}
}

type characterView struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Playable      bool           `json:"playable"`
	Health        int            `json:"health"`
	Happiness     int            `json:"happiness"`
	Money         int            `json:"money"`
	Level         int            `json:"level"`
	Stats         domain.Stats   `json:"stats"`
	Items         []string       `json:"items,omitempty"`
	Skills        []string       `json:"skills,omitempty"`
	Relationships map[string]int `json:"relationships,omitempty"`
	Scenario      string         `json:"scenario,omitempty"`
}

type objectiveView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type turnView struct {
	Actor   string `json:"actor"`
	Choice  string `json:"choice"`
	Outcome string `json:"outcome"`
}

type turnInput struct {
	Title            string          `json:"title"`
	Premise          string          `json:"premise,omitempty"`
	Chapter          int             `json:"chapter"`
	PreviousChapters []string        `json:"previousChapters,omitempty"`
	Location         string          `json:"location"`
	TimeOfDay        string          `json:"timeOfDay"`
	Characters       []characterView `json:"characters"`
	Objectives       []objectiveView `json:"activeObjectives,omitempty"`
	RecentTurns      []turnView      `json:"recentTurns,omitempty"`
	ObjectiveWanted  bool            `json:"objectiveWanted"`
	MiniGameActive   bool            `json:"miniGameActive"`
	ActingCharacter  string          `json:"actingCharacter"`
	Action           string          `json:"action"`
}

// TurnInput renders the user message for a proposal request.
func (b *PromptBuilder) TurnInput(req Request) (string, error) {
	story := req.Story
	in := turnInput{
		Title:           story.Title,
		Premise:         story.Premise,
		Chapter:         story.Chapter,
		Location:        story.LocationName,
		TimeOfDay:       string(story.TimeOfDay),
		ObjectiveWanted: req.ObjectiveWanted,
		MiniGameActive:  story.ActiveMiniGame != nil,
		ActingCharacter: req.Actor.Name,
		Action:          req.Action,
	}
	for _, s := range story.ChapterSummaries {
		in.PreviousChapters = append(in.PreviousChapters, s.Summary)
	}
	for _, c := range story.Characters {
		if c.Deactivated {
			continue
		}
		in.Characters = append(in.Characters, viewCharacter(story, c))
	}
	for _, o := range story.Objectives {
		if o.Status == domain.ObjectiveActive {
			in.Objectives = append(in.Objectives, objectiveView{ID: o.ID.String(), Description: o.Description})
		}
	}
	in.RecentTurns = b.recentTurns(story)

	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal turn input: %w", err)
	}
	return string(data), nil
}

// SummaryInput renders the turns of the chapter that just closed.
func (b *PromptBuilder) SummaryInput(story *domain.Story, chapterLength int) string {
	start := len(story.History) - chapterLength
	if start < 0 {
		start = 0
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Story: %s\nChapter %d\n\n", story.Title, story.Chapter)
	for _, h := range story.History[start:] {
		fmt.Fprintf(&sb, "- %s: %s\n  %s\n", actorName(story, h), h.ChoiceText, h.OutcomeText)
	}
	return sb.String()
}

// recentTurns keeps the newest entries whose combined size fits the history budget.
func (b *PromptBuilder) recentTurns(story *domain.Story) []turnView {
	used := 0
	var out []turnView
	for i := len(story.History) - 1; i >= 0; i-- {
		h := story.History[i]
		v := turnView{Actor: actorName(story, h), Choice: h.ChoiceText, Outcome: h.OutcomeText}
		cost := b.tokens.Count(v.Actor + v.Choice + v.Outcome)
		if used+cost > b.historyBudget {
			break
		}
		used += cost
		out = append(out, v)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func viewCharacter(story *domain.Story, c *domain.Character) characterView {
	v := characterView{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		Playable:    c.IsPlayable,
		Health:      c.Health,
		Happiness:   c.Happiness,
		Money:       c.Money,
		Level:       c.Level,
		Stats:       c.Stats,
		Skills:      c.Skills,
	}
	for _, it := range c.Items {
		v.Items = append(v.Items, it.Name)
	}
	if len(c.Relationships) > 0 {
		v.Relationships = make(map[string]int, len(c.Relationships))
		for id, val := range c.Relationships {
			if other := story.Character(id); other != nil {
				v.Relationships[other.Name] = val
			}
		}
	}
	if c.CurrentScenario != nil {
		v.Scenario = c.CurrentScenario.Description
	}
	return v
}

func actorName(story *domain.Story, h domain.HistoryEntry) string {
	if c := story.Character(h.ActorID); c != nil {
		return c.Name
	}
	return "someone"
}
