package relationship

import (
	"testing"

	"novel-engine/internal/config"
	"novel-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStory() (*domain.Story, uuid.UUID, uuid.UUID, uuid.UUID) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	s := &domain.Story{Characters: []*domain.Character{
		{ID: a, Name: "Ada"},
		{ID: b, Name: "Bo"},
		{ID: c, Name: "Cy"},
	}}
	return s, a, b, c
}

func TestAdjustClampsAndIsDirectional(t *testing.T) {
	g := New(config.DefaultRules().Relationship, zap.NewNop())
	s, a, b, _ := newStory()

	ch, _, err := g.Adjust(s, a, b, 250)
	require.NoError(t, err)
	assert.Equal(t, 100, ch.Value)
	assert.Equal(t, 100, ch.Delta)
	assert.Equal(t, 100, g.Value(s, a, b))
	assert.Equal(t, 0, g.Value(s, b, a))

	ch, _, err = g.Adjust(s, b, a, -300)
	require.NoError(t, err)
	assert.Equal(t, -100, ch.Value)

	for _, d := range []int{-7, 13, 999, -999, 42} {
		ch, _, err := g.Adjust(s, a, b, d)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ch.Value, -100)
		assert.LessOrEqual(t, ch.Value, 100)
	}
}

func TestAdjustRejectsInvalidPairs(t *testing.T) {
	g := New(config.DefaultRules().Relationship, zap.NewNop())
	s, a, _, _ := newStory()

	_, _, err := g.Adjust(s, a, a, 5)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = g.Adjust(s, a, uuid.New(), 5)
	assert.ErrorIs(t, err, domain.ErrCharacterNotFound)
}

func TestThresholdCrossingFiresOncePerPair(t *testing.T) {
	g := New(config.DefaultRules().Relationship, zap.NewNop())
	s, a, b, _ := newStory()

	_, ev, err := g.Adjust(s, a, b, 79)
	require.NoError(t, err)
	assert.Nil(t, ev)

	_, ev, err = g.Adjust(s, a, b, 1)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 80, ev.Value)

	// Same pair, other direction, negative side: no second event.
	_, ev, err = g.Adjust(s, b, a, -90)
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Len(t, s.CrossedThresholds, 1)
}

func TestAdjustProposedCapsDelta(t *testing.T) {
	g := New(config.DefaultRules().Relationship, zap.NewNop())
	s, a, b, _ := newStory()

	ch, _, err := g.AdjustProposed(s, a, b, 90)
	require.NoError(t, err)
	assert.Equal(t, 25, ch.Value)
}

func TestHistoryMostRecentFirst(t *testing.T) {
	_, a, b, c := newStory()
	entries := []domain.HistoryEntry{
		{Index: 0, RelationshipChanges: []domain.RelationshipChange{{FromID: a, ToID: b, Delta: 5}}},
		{Index: 1, RelationshipChanges: []domain.RelationshipChange{{FromID: a, ToID: c, Delta: 5}}},
		{Index: 2},
		{Index: 3, RelationshipChanges: []domain.RelationshipChange{{FromID: b, ToID: a, Delta: -5}}},
	}

	got := History(entries, a, b)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Index)
	assert.Equal(t, 0, got[1].Index)

	assert.Equal(t, History(entries, a, b), History(entries, b, a))
	assert.Empty(t, History(entries, b, c))
}
