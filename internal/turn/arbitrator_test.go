package turn

import (
	"testing"
	"time"

	"novel-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	story   *domain.Story
	a, b, c *domain.Character
	npc     *domain.Character
}

func newCoOpFixture(t *testing.T, arb *Arbitrator) fixture {
	t.Helper()
	f := fixture{
		a:   &domain.Character{ID: uuid.New(), Name: "Ada", IsPlayable: true},
		b:   &domain.Character{ID: uuid.New(), Name: "Bo", IsPlayable: true},
		c:   &domain.Character{ID: uuid.New(), Name: "Cy", IsPlayable: true},
		npc: &domain.Character{ID: uuid.New(), Name: "Innkeeper"},
	}
	f.story = &domain.Story{ID: uuid.New(), CoOp: true, Characters: []*domain.Character{f.a, f.b, f.c, f.npc}}
	now := time.Now()
	require.NoError(t, arb.Claim(f.story, "u1", "One", f.a.ID, now))
	require.NoError(t, arb.Claim(f.story, "u2", "Two", f.b.ID, now))
	require.NoError(t, arb.Claim(f.story, "u3", "Three", f.c.ID, now))
	return f
}

func TestClaim(t *testing.T) {
	arb := NewArbitrator(zap.NewNop())
	f := newCoOpFixture(t, arb)

	assert.Equal(t, f.a.ID, f.story.TurnCharacterID, "first claim takes the turn")

	tests := []struct {
		name    string
		userID  string
		charID  uuid.UUID
		wantErr error
	}{
		{"already joined", "u1", f.npc.ID, domain.ErrAlreadyJoined},
		{"claimed by another", "u4", f.b.ID, domain.ErrCharacterClaimed},
		{"not playable", "u4", f.npc.ID, domain.ErrValidation},
		{"unknown character", "u4", uuid.New(), domain.ErrCharacterNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := arb.Claim(f.story, tt.userID, "x", tt.charID, time.Now())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, f.story.Players, 3)
		})
	}
}

func TestGate(t *testing.T) {
	arb := NewArbitrator(zap.NewNop())
	f := newCoOpFixture(t, arb)

	assert.NoError(t, arb.Gate(f.story, "u1", f.a.ID))
	assert.ErrorIs(t, arb.Gate(f.story, "u2", f.b.ID), domain.ErrNotYourTurn)
	assert.ErrorIs(t, arb.Gate(f.story, "u2", f.a.ID), domain.ErrNotYourTurn, "acting as someone else's character")
	assert.ErrorIs(t, arb.Gate(f.story, "stranger", f.a.ID), domain.ErrNotYourTurn)

	t.Run("solo", func(t *testing.T) {
		solo := &domain.Story{OwnerID: "owner", ActiveCharacterID: f.a.ID, Characters: []*domain.Character{f.a, f.b}}
		assert.NoError(t, arb.Gate(solo, "owner", f.a.ID))
		assert.ErrorIs(t, arb.Gate(solo, "owner", f.b.ID), domain.ErrNotYourTurn)
		assert.ErrorIs(t, arb.Gate(solo, "other", f.a.ID), domain.ErrNotYourTurn)
	})
}

func TestNextRoundRobinAndSuggestion(t *testing.T) {
	arb := NewArbitrator(zap.NewNop())
	f := newCoOpFixture(t, arb)

	assert.Equal(t, f.b.ID, arb.Next(f.story, ""))
	assert.Equal(t, f.c.ID, arb.Next(f.story, ""))
	assert.Equal(t, f.a.ID, arb.Next(f.story, ""), "wraps around")

	assert.Equal(t, f.c.ID, arb.Next(f.story, "cy"), "suggestion by name")
	assert.Equal(t, f.b.ID, arb.Next(f.story, f.b.ID.String()), "suggestion by id")

	// An NPC or unknown suggestion falls back to round-robin.
	assert.Equal(t, f.c.ID, arb.Next(f.story, "Innkeeper"))
	assert.Equal(t, f.a.ID, arb.Next(f.story, "nobody"))

	f.b.Deactivated = true
	assert.Equal(t, f.c.ID, arb.Next(f.story, "Bo"), "deactivated characters are skipped")
}

func TestReleaseHandsOverTurn(t *testing.T) {
	arb := NewArbitrator(zap.NewNop())
	f := newCoOpFixture(t, arb)
	arb.Next(f.story, "Bo")
	require.Equal(t, f.b.ID, f.story.TurnCharacterID)

	next, err := arb.Release(f.story, "u2")
	require.NoError(t, err)
	assert.Equal(t, f.c.ID, next)
	assert.Nil(t, f.story.PlayerByCharacter(f.b.ID), "character is unclaimed again")

	// Releasing a player who does not hold the turn keeps it where it is.
	next, err = arb.Release(f.story, "u1")
	require.NoError(t, err)
	assert.Equal(t, f.c.ID, next)

	next, err = arb.Release(f.story, "u3")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, next)

	_, err = arb.Release(f.story, "u3")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The freed character can be claimed again.
	require.NoError(t, arb.Claim(f.story, "u9", "Nine", f.b.ID, time.Now()))
	assert.Equal(t, f.b.ID, f.story.TurnCharacterID)
}

func TestNextSoloSwitchesActiveCharacter(t *testing.T) {
	arb := NewArbitrator(zap.NewNop())
	a := &domain.Character{ID: uuid.New(), Name: "Ada", IsPlayable: true}
	b := &domain.Character{ID: uuid.New(), Name: "Bo", IsPlayable: true}
	npc := &domain.Character{ID: uuid.New(), Name: "Innkeeper"}
	s := &domain.Story{ActiveCharacterID: a.ID, Characters: []*domain.Character{a, b, npc}}

	assert.Equal(t, a.ID, arb.Next(s, ""))
	assert.Equal(t, a.ID, arb.Next(s, "Innkeeper"))
	assert.Equal(t, b.ID, arb.Next(s, "Bo"))
}
