package ledger

import (
	"testing"

	"novel-engine/internal/config"
	"novel-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func intPtr(v int) *int { return &v }

func newTestLedger() *Ledger {
	return New(config.DefaultRules().Character, zap.NewNop())
}

func TestApplyDeltaClampsNumericFields(t *testing.T) {
	l := newTestLedger()
	tests := []struct {
		name  string
		delta domain.CharacterDelta
		check func(t *testing.T, c *domain.Character, res Result)
	}{
		{
			name:  "health above max",
			delta: domain.CharacterDelta{Health: intPtr(500)},
			check: func(t *testing.T, c *domain.Character, res Result) {
				assert.Equal(t, 100, c.Health)
				assert.Contains(t, res.Clamped, "health")
			},
		},
		{
			name:  "health below zero",
			delta: domain.CharacterDelta{Health: intPtr(-1000)},
			check: func(t *testing.T, c *domain.Character, res Result) {
				assert.Equal(t, 0, c.Health)
			},
		},
		{
			name:  "money never negative",
			delta: domain.CharacterDelta{Money: intPtr(-101)},
			check: func(t *testing.T, c *domain.Character, res Result) {
				assert.Equal(t, 0, c.Money)
				assert.Contains(t, res.Clamped, "money")
			},
		},
		{
			name:  "happiness bounded",
			delta: domain.CharacterDelta{Happiness: intPtr(80)},
			check: func(t *testing.T, c *domain.Character, res Result) {
				assert.Equal(t, 100, c.Happiness)
			},
		},
		{
			name:  "stats bounded and unknown ignored",
			delta: domain.CharacterDelta{Stats: map[domain.Stat]int{domain.StatWits: -50, "luck": 3}},
			check: func(t *testing.T, c *domain.Character, res Result) {
				assert.Equal(t, 0, c.Stats.Wits)
				assert.Contains(t, res.Clamped, "luck")
			},
		},
		{
			name:  "in-range delta is exact",
			delta: domain.CharacterDelta{Health: intPtr(-30), Money: intPtr(25)},
			check: func(t *testing.T, c *domain.Character, res Result) {
				assert.Equal(t, 70, c.Health)
				assert.Equal(t, 125, c.Money)
				assert.Empty(t, res.Clamped)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := l.NewCharacter("Mira", "", true)
			res := l.ApplyDelta(c, tt.delta)
			tt.check(t, c, res)
			assert.GreaterOrEqual(t, c.Health, 0)
			assert.LessOrEqual(t, c.Health, 100)
			assert.GreaterOrEqual(t, c.Happiness, 0)
			assert.LessOrEqual(t, c.Happiness, 100)
			assert.GreaterOrEqual(t, c.Money, 0)
		})
	}
}

func TestApplyDeltaItems(t *testing.T) {
	l := newTestLedger()
	c := l.NewCharacter("Mira", "", true)

	l.ApplyDelta(c, domain.CharacterDelta{ItemsGained: []domain.Item{{Name: "Lantern"}, {Name: "Map", Description: "old"}}})
	require.Len(t, c.Items, 2)

	t.Run("duplicate gain ignored", func(t *testing.T) {
		l.ApplyDelta(c, domain.CharacterDelta{ItemsGained: []domain.Item{{Name: "lantern"}}})
		assert.Len(t, c.Items, 2)
	})

	t.Run("removing absent item is a no-op", func(t *testing.T) {
		res := l.ApplyDelta(c, domain.CharacterDelta{ItemsLost: []string{"Sword"}})
		assert.Len(t, c.Items, 2)
		assert.Equal(t, []string{"Sword"}, res.ItemsMissing)
	})

	t.Run("removal is case-insensitive and keeps order", func(t *testing.T) {
		l.ApplyDelta(c, domain.CharacterDelta{ItemsLost: []string{" LANTERN "}})
		require.Len(t, c.Items, 1)
		assert.Equal(t, "Map", c.Items[0].Name)
	})

	t.Run("skills form a set", func(t *testing.T) {
		l.ApplyDelta(c, domain.CharacterDelta{SkillGained: "Lockpicking"})
		l.ApplyDelta(c, domain.CharacterDelta{SkillGained: "lockpicking"})
		assert.Equal(t, []string{"Lockpicking"}, c.Skills)
	})
}

func TestLevelUpIsDeterministic(t *testing.T) {
	l := newTestLedger()
	c := l.NewCharacter("Mira", "", true)

	res := l.ApplyDelta(c, domain.CharacterDelta{XP: intPtr(99)})
	assert.Equal(t, 0, res.LevelsGained)
	assert.Equal(t, 1, c.Level)

	res = l.ApplyDelta(c, domain.CharacterDelta{XP: intPtr(1)})
	assert.Equal(t, 1, res.LevelsGained)
	assert.Equal(t, 2, c.Level)
	assert.Equal(t, 3, c.UnspentStatPoints)

	// Jumping several thresholds at once grants points for each level.
	res = l.ApplyDelta(c, domain.CharacterDelta{XP: intPtr(600)})
	assert.Equal(t, 3, res.LevelsGained)
	assert.Equal(t, 5, c.Level)
	assert.Equal(t, 12, c.UnspentStatPoints)

	// Losing XP never lowers the level.
	l.ApplyDelta(c, domain.CharacterDelta{XP: intPtr(-10000)})
	assert.Equal(t, 0, c.XP)
	assert.Equal(t, 5, c.Level)
}

func TestApplyProposedDeltaCapsMagnitude(t *testing.T) {
	l := newTestLedger()
	c := l.NewCharacter("Mira", "", true)

	l.ApplyProposedDelta(c, domain.CharacterDelta{
		Health: intPtr(-90),
		Money:  intPtr(1_000_000),
		XP:     intPtr(5000),
		Stats:  map[domain.Stat]int{domain.StatCharisma: 10},
	})
	assert.Equal(t, 60, c.Health)
	assert.Equal(t, 1100, c.Money)
	assert.Equal(t, 200, c.XP)
	assert.Equal(t, 7, c.Stats.Charisma)
}

func TestApplyToStory(t *testing.T) {
	l := newTestLedger()
	c := l.NewCharacter("Mira", "", true)
	story := &domain.Story{Characters: []*domain.Character{c}}

	_, err := l.ApplyToStory(story, domain.CharacterDelta{Character: "mira", Money: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 105, c.Money)

	_, err = l.ApplyToStory(story, domain.CharacterDelta{Character: c.ID.String(), Money: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 110, c.Money)

	_, err = l.ApplyToStory(story, domain.CharacterDelta{Character: uuid.NewString()})
	assert.ErrorIs(t, err, domain.ErrCharacterNotFound)
}

func TestSpendStatPoint(t *testing.T) {
	l := newTestLedger()
	c := l.NewCharacter("Mira", "", true)

	err := l.SpendStatPoint(c, domain.StatWits)
	assert.ErrorIs(t, err, domain.ErrInsufficientResource)

	c.UnspentStatPoints = 1
	require.NoError(t, l.SpendStatPoint(c, domain.StatWits))
	assert.Equal(t, 6, c.Stats.Wits)
	assert.Equal(t, 0, c.UnspentStatPoints)

	c.UnspentStatPoints = 1
	assert.ErrorIs(t, l.SpendStatPoint(c, "luck"), domain.ErrValidation)
}

func TestNormalize(t *testing.T) {
	l := newTestLedger()
	c := &domain.Character{ID: uuid.New(), Health: 150, Happiness: -3, Money: -10, XP: 300}
	l.Normalize(c)
	assert.Equal(t, 100, c.Health)
	assert.Equal(t, 0, c.Happiness)
	assert.Equal(t, 0, c.Money)
	assert.Equal(t, 3, c.Level)
	assert.NotNil(t, c.Items)
	assert.NotNil(t, c.Relationships)
}
