package narrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"novel-engine/internal/domain"
	"novel-engine/internal/minigame"
	"novel-engine/internal/narrator"
	"novel-engine/pkg/ai"
	aimocks "novel-engine/pkg/ai/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStory() (*domain.Story, *domain.Character, *domain.Character) {
	hero := &domain.Character{ID: uuid.New(), Name: "Mara", IsPlayable: true, Health: 80}
	npc := &domain.Character{ID: uuid.New(), Name: "Tobin"}
	return &domain.Story{
		ID:           uuid.New(),
		OwnerID:      "user-1",
		Title:        "Harbor Lights",
		Status:       domain.StatusPlaying,
		Chapter:      1,
		Characters:   []*domain.Character{hero, npc},
		LocationName: "Docks",
		TimeOfDay:    domain.Morning,
	}, hero, npc
}

func newNarrator(client ai.Client) narrator.Narrator {
	prompts := narrator.NewPromptBuilder(ai.NewTokenCounter("gpt-4o-mini"), 3000)
	return narrator.New(client, prompts, ai.GenerationParams{}, 0, zap.NewNop())
}

func TestPropose(t *testing.T) {
	t.Run("parses fenced JSON and drops unknown references", func(t *testing.T) {
		story, hero, _ := testStory()
		client := aimocks.NewMockClient(t)
		raw := "Here you go:\n```json\n" + `{
			"narrativeText": "Mara slips past the guard.",
			"statDeltas": [{"character": "Mara", "health": -5, "stats": {"luck": 3, "wits": 1}},
			               {"character": "Nobody", "money": 100}],
			"relationshipDeltas": [{"from": "Mara", "to": "Tobin", "delta": 10},
			                       {"from": "Mara", "to": "Mara", "delta": 10}],
			"objectiveEvents": [{"type": "bogus"}],
			"nextActor": "Ghost"
		}` + "\n```"
		client.On("GenerateText", mock.Anything, "user-1", mock.Anything, mock.Anything, mock.Anything).
			Return(raw, ai.UsageInfo{}, nil)

		p, err := newNarrator(client).Propose(context.Background(), narrator.Request{
			Story: story, Actor: hero, Action: "sneak past", UserID: "user-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "Mara slips past the guard.", p.NarrativeText)
		require.Len(t, p.StatDeltas, 1)
		assert.Equal(t, map[domain.Stat]int{domain.StatWits: 1}, p.StatDeltas[0].Stats)
		assert.Len(t, p.RelationshipDeltas, 1)
		assert.Empty(t, p.ObjectiveEvents)
		assert.Empty(t, p.NextActor)
	})

	t.Run("backend failure maps to proposal rejected", func(t *testing.T) {
		story, hero, _ := testStory()
		client := aimocks.NewMockClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", ai.UsageInfo{}, context.DeadlineExceeded)

		_, err := newNarrator(client).Propose(context.Background(), narrator.Request{Story: story, Actor: hero, Action: "wait"})
		assert.ErrorIs(t, err, domain.ErrProposalRejected)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("output without narrative text is rejected", func(t *testing.T) {
		story, hero, _ := testStory()
		client := aimocks.NewMockClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(`{"statDeltas": []}`, ai.UsageInfo{}, nil)

		_, err := newNarrator(client).Propose(context.Background(), narrator.Request{Story: story, Actor: hero, Action: "wait"})
		assert.ErrorIs(t, err, domain.ErrProposalRejected)
	})

	t.Run("prose without JSON is rejected", func(t *testing.T) {
		story, hero, _ := testStory()
		client := aimocks.NewMockClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("The sea is calm.", ai.UsageInfo{}, nil)

		_, err := newNarrator(client).Propose(context.Background(), narrator.Request{Story: story, Actor: hero, Action: "wait"})
		assert.ErrorIs(t, err, domain.ErrProposalRejected)
	})

	t.Run("mini-game proposal is dropped while one is active", func(t *testing.T) {
		story, hero, _ := testStory()
		story.ActiveMiniGame = &domain.RiddleChallenge{Question: "q", AcceptableAnswers: []string{"a"}}
		client := aimocks.NewMockClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(`{"narrativeText": "x", "startMiniGame": {"kind": "riddle_challenge", "question": "q2", "answers": ["b"]}}`, ai.UsageInfo{}, nil)

		p, err := newNarrator(client).Propose(context.Background(), narrator.Request{Story: story, Actor: hero, Action: "think"})
		require.NoError(t, err)
		assert.Nil(t, p.StartMiniGame)
	})
}

func TestHaggle(t *testing.T) {
	client := aimocks.NewMockClient(t)
	client.On("GenerateText", mock.Anything, "", mock.Anything, mock.MatchedBy(func(in string) bool {
		return strings.Contains(in, "Lantern") && strings.Contains(in, "offers: 10")
	}), mock.Anything).Return(`{"dialogue": "Ha! No.", "patienceDamage": 30, "counterOffer": 45}`, ai.UsageInfo{}, nil)

	reply, err := newNarrator(client).Haggle(context.Background(), minigame.HaggleRequest{
		NPCName: "Ezra", Item: "Lantern", Offer: 10, LastOffer: 50, Patience: 100, AskingPrice: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ha! No.", reply.Dialogue)
	assert.Equal(t, 30, reply.PatienceDamage)
	assert.Equal(t, 45, reply.CounterOffer)
}

func TestSummarizeChapter(t *testing.T) {
	story, hero, _ := testStory()
	for i := 0; i < 12; i++ {
		story.History = append(story.History, domain.HistoryEntry{Index: i, ActorID: hero.ID, ChoiceText: "act", OutcomeText: "done"})
	}

	t.Run("returns trimmed text", func(t *testing.T) {
		client := aimocks.NewMockClient(t)
		client.On("GenerateText", mock.Anything, "user-1", mock.Anything, mock.Anything, mock.Anything).
			Return("  They met at the docks.\n", ai.UsageInfo{}, nil)

		summary, err := newNarrator(client).SummarizeChapter(context.Background(), story, 10)
		require.NoError(t, err)
		assert.Equal(t, "They met at the docks.", summary)
	})

	t.Run("empty summary is an error", func(t *testing.T) {
		client := aimocks.NewMockClient(t)
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("   ", ai.UsageInfo{}, nil)

		_, err := newNarrator(client).SummarizeChapter(context.Background(), story, 10)
		assert.ErrorIs(t, err, domain.ErrProposalRejected)
	})
}

func TestPromptBuilderKeepsNewestTurnsWithinBudget(t *testing.T) {
	story, hero, _ := testStory()
	for i := 0; i < 50; i++ {
		story.History = append(story.History, domain.HistoryEntry{
			Index: i, ActorID: hero.ID, ChoiceText: "step", OutcomeText: strings.Repeat("word ", 40) + "end" + string(rune('A'+i%26)),
		})
	}
	b := narrator.NewPromptBuilder(ai.NewTokenCounter("gpt-4o-mini"), 200)

	input, err := b.TurnInput(narrator.Request{Story: story, Actor: hero, Action: "look"})
	require.NoError(t, err)
	assert.Contains(t, input, "endX", "newest turn must be kept")
	assert.NotContains(t, input, "endA\"", "oldest turn must be trimmed")
}
