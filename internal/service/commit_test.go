package service

import (
	"testing"

	"novel-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockStory(t *testing.T) {
	s := &storyServiceImpl{busy: make(map[uuid.UUID]struct{})}
	id, other := uuid.New(), uuid.New()

	unlock, err := s.lockStory(id)
	require.NoError(t, err)

	_, err = s.lockStory(id)
	assert.ErrorIs(t, err, domain.ErrActionPending)

	unlockOther, err := s.lockStory(other)
	require.NoError(t, err, "stories lock independently")
	assert.Len(t, s.busy, 2)

	unlock()
	unlock()
	unlockOther()
	assert.Empty(t, s.busy, "released stories leave nothing behind")

	again, err := s.lockStory(id)
	require.NoError(t, err)
	again()
	assert.Empty(t, s.busy)
}
