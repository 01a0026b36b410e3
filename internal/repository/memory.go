package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"novel-engine/internal/domain"

	"github.com/google/uuid"
)

// MemoryStoryRepository keeps stories in process memory. Values are cloned on
// the way in and out so callers never share state with the store.
type MemoryStoryRepository struct {
	mu        sync.RWMutex
	stories   map[uuid.UUID]*domain.Story
	bookmarks map[uuid.UUID]*domain.Bookmark
}

var _ StoryRepository = (*MemoryStoryRepository)(nil)

func NewMemoryStoryRepository() *MemoryStoryRepository {
	return &MemoryStoryRepository{
		stories:   make(map[uuid.UUID]*domain.Story),
		bookmarks: make(map[uuid.UUID]*domain.Bookmark),
	}
}

func (r *MemoryStoryRepository) Create(_ context.Context, story *domain.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stories[story.ID]; exists {
		return fmt.Errorf("%w: story %s already exists", domain.ErrVersionConflict, story.ID)
	}
	r.stories[story.ID] = story.Clone()
	return nil
}

func (r *MemoryStoryRepository) Get(_ context.Context, id uuid.UUID) (*domain.Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stories[id]
	if !ok {
		return nil, fmt.Errorf("%w: story %s", domain.ErrNotFound, id)
	}
	return s.Clone(), nil
}

func (r *MemoryStoryRepository) Save(_ context.Context, story *domain.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(story)
}

func (r *MemoryStoryRepository) saveLocked(story *domain.Story) error {
	current, ok := r.stories[story.ID]
	if !ok {
		return fmt.Errorf("%w: story %s", domain.ErrNotFound, story.ID)
	}
	if story.Version != current.Version+1 {
		return fmt.Errorf("%w: stored version %d, got %d", domain.ErrVersionConflict, current.Version, story.Version)
	}
	r.stories[story.ID] = story.Clone()
	return nil
}

func (r *MemoryStoryRepository) ListForUser(_ context.Context, userID string, limit, offset int) ([]domain.StorySummary, error) {
	r.mu.RLock()
	var out []domain.StorySummary
	for _, s := range r.stories {
		if s.OwnerID == userID || s.PlayerByUser(userID) != nil {
			out = append(out, s.Summary())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if offset >= len(out) {
		return []domain.StorySummary{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryStoryRepository) SaveWithBookmark(_ context.Context, story *domain.Story, bookmark *domain.Bookmark) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.saveLocked(story); err != nil {
		return err
	}
	b := *bookmark
	b.Snapshot = bookmark.Snapshot.Clone()
	r.bookmarks[b.ID] = &b
	return nil
}

func (r *MemoryStoryRepository) GetBookmark(_ context.Context, id uuid.UUID) (*domain.Bookmark, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookmarks[id]
	if !ok {
		return nil, fmt.Errorf("%w: bookmark %s", domain.ErrNotFound, id)
	}
	cp := *b
	cp.Snapshot = b.Snapshot.Clone()
	return &cp, nil
}

func (r *MemoryStoryRepository) ListBookmarks(_ context.Context, storyID uuid.UUID) ([]domain.Bookmark, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Bookmark{}
	for _, b := range r.bookmarks {
		if b.StoryID == storyID {
			cp := *b
			cp.Snapshot = nil
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
