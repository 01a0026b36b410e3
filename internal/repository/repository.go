package repository

import (
	"context"
	"embed"

	"novel-engine/internal/domain"

	"github.com/google/uuid"
)

// Migrations holds the schema for the PostgreSQL store.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsPath is the directory inside Migrations.
const MigrationsPath = "migrations"

// StoryRepository persists committed story snapshots.
//
// Save uses optimistic versioning: story.Version must be exactly one more than the
// stored version, otherwise domain.ErrVersionConflict is returned and nothing is written.
type StoryRepository interface {
	Create(ctx context.Context, story *domain.Story) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Story, error)
	Save(ctx context.Context, story *domain.Story) error
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.StorySummary, error)

	// SaveWithBookmark stores the story and a new bookmark atomically.
	SaveWithBookmark(ctx context.Context, story *domain.Story, bookmark *domain.Bookmark) error
	GetBookmark(ctx context.Context, id uuid.UUID) (*domain.Bookmark, error)
	ListBookmarks(ctx context.Context, storyID uuid.UUID) ([]domain.Bookmark, error)
}
