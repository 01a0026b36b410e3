package repository_test

import (
	"context"
	"testing"
	"time"

	"novel-engine/internal/domain"
	"novel-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStory(owner string) *domain.Story {
	now := time.Now().UTC().Truncate(time.Millisecond)
	hero := &domain.Character{ID: uuid.New(), Name: "Mara", IsPlayable: true, Health: 90}
	return &domain.Story{
		ID:                uuid.New(),
		OwnerID:           owner,
		Title:             "Harbor Lights",
		Status:            domain.StatusPlaying,
		Chapter:           1,
		Characters:        []*domain.Character{hero},
		ActiveCharacterID: hero.ID,
		TimeOfDay:         domain.Morning,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestMemoryRepositoryVersioning(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStoryRepository()
	story := newStory("user-1")
	require.NoError(t, repo.Create(ctx, story))

	t.Run("returned stories are copies", func(t *testing.T) {
		got, err := repo.Get(ctx, story.ID)
		require.NoError(t, err)
		got.Characters[0].Health = 1
		again, err := repo.Get(ctx, story.ID)
		require.NoError(t, err)
		assert.Equal(t, 90, again.Characters[0].Health)
	})

	t.Run("save requires the next version", func(t *testing.T) {
		next := story.Clone()
		next.Version = 3
		assert.ErrorIs(t, repo.Save(ctx, next), domain.ErrVersionConflict)

		next.Version = 2
		next.Title = "Renamed"
		require.NoError(t, repo.Save(ctx, next))
		assert.ErrorIs(t, repo.Save(ctx, next), domain.ErrVersionConflict)

		got, err := repo.Get(ctx, story.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.EqualValues(t, 2, got.Version)
	})

	t.Run("unknown story", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMemoryRepositoryListForUser(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStoryRepository()

	owned := newStory("user-1")
	joined := newStory("user-2")
	joined.CoOp = true
	joined.Players = []domain.Player{{UserID: "user-1", CharacterID: joined.Characters[0].ID}}
	joined.UpdatedAt = owned.UpdatedAt.Add(time.Minute)
	other := newStory("user-3")
	for _, s := range []*domain.Story{owned, joined, other} {
		require.NoError(t, repo.Create(ctx, s))
	}

	list, err := repo.ListForUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, joined.ID, list[0].ID, "most recently updated first")
	assert.Equal(t, owned.ID, list[1].ID)

	page, err := repo.ListForUser(ctx, "user-1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, owned.ID, page[0].ID)
}

func TestMemoryRepositoryBookmarks(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryStoryRepository()
	story := newStory("user-1")
	require.NoError(t, repo.Create(ctx, story))

	next := story.Clone()
	next.Version = 2
	b := &domain.Bookmark{ID: uuid.New(), StoryID: story.ID, OwnerID: "user-1", Label: "before the duel", Snapshot: story.Clone(), CreatedAt: time.Now()}
	require.NoError(t, repo.SaveWithBookmark(ctx, next, b))

	got, err := repo.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Snapshot)
	assert.EqualValues(t, 1, got.Snapshot.Version)

	list, err := repo.ListBookmarks(ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Snapshot)

	stale := story.Clone()
	stale.Version = 2
	assert.ErrorIs(t, repo.SaveWithBookmark(ctx, stale, &domain.Bookmark{ID: uuid.New(), Snapshot: stale}), domain.ErrVersionConflict)
}
