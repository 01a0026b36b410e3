package objective

import (
	"testing"
	"time"

	"novel-engine/internal/config"
	"novel-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingCrediter struct {
	calls int
}

func (c *countingCrediter) Credit(w *domain.Wallet, tokens int) {
	c.calls++
	w.ActionTokens += tokens
}

func newTracker() (*Tracker, *countingCrediter) {
	cr := &countingCrediter{}
	return NewTracker(config.DefaultRules().Objectives, cr, zap.NewNop()), cr
}

func TestTickCountsDown(t *testing.T) {
	tr, _ := newTracker()
	story := &domain.Story{}
	tr.Reset(story)

	for i := 0; i < 4; i++ {
		assert.False(t, tr.Tick(story), "tick %d", i)
	}
	assert.True(t, tr.Tick(story))
	assert.Equal(t, 0, story.ObjectiveCountdown)
	assert.True(t, tr.Tick(story), "stays due until an objective is offered")
}

func TestOfferRespectsCap(t *testing.T) {
	tr, _ := newTracker()
	story := &domain.Story{}
	now := time.Now()

	o1, err := tr.Offer(story, "Find the lighthouse keeper", 3, now)
	require.NoError(t, err)
	require.NotNil(t, o1)
	assert.Equal(t, 5, story.ObjectiveCountdown)

	o2, err := tr.Offer(story, "Repair the lens", 50, now)
	require.NoError(t, err)
	require.NotNil(t, o2)
	assert.Equal(t, 5, o2.TokenReward)

	o3, err := tr.Offer(story, "A third goal", 1, now)
	require.NoError(t, err)
	assert.Nil(t, o3)
	assert.Equal(t, 2, story.ActiveObjectives())

	story.ObjectiveCountdown = 0
	assert.False(t, tr.Due(story), "cap reached")

	_, err = tr.Offer(story, "  ", 1, now)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCompleteIsIdempotent(t *testing.T) {
	tr, cr := newTracker()
	story := &domain.Story{Wallet: domain.Wallet{ActionTokens: 10}}
	o, err := tr.Offer(story, "Find the keeper", 3, time.Now())
	require.NoError(t, err)
	id := o.ID

	done, err := tr.Complete(story, id, time.Now())
	require.NoError(t, err)
	assert.True(t, done)

	done, err = tr.Complete(story, id, time.Now())
	require.NoError(t, err)
	assert.False(t, done)

	assert.Equal(t, 1, cr.calls)
	assert.Equal(t, 13, story.Wallet.ActionTokens)
	assert.Equal(t, domain.ObjectiveCompleted, story.Objectives[0].Status)
	assert.NotNil(t, story.Objectives[0].CompletedAt)

	_, err = tr.Complete(story, uuid.New(), time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
