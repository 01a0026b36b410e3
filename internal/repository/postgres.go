package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"novel-engine/internal/domain"
	"novel-engine/pkg/database"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	insertStoryQuery = `
        INSERT INTO stories (id, owner_id, title, status, co_op, version, state_hash, state, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	updateStoryQuery = `
        UPDATE stories SET
            title = $2,
            status = $3,
            co_op = $4,
            version = $5,
            state_hash = $6,
            state = $7,
            updated_at = $8
        WHERE id = $1 AND version = $5 - 1
    `
	getStoryStateQuery    = `SELECT state FROM stories WHERE id = $1`
	storyExistsQuery      = `SELECT EXISTS (SELECT 1 FROM stories WHERE id = $1)`
	listStoriesForUserQry = `
        SELECT id, owner_id, title, status, co_op, version, updated_at
        FROM stories
        WHERE owner_id = $1
           OR (state -> 'players') @> jsonb_build_array(jsonb_build_object('userId', $1::text))
        ORDER BY updated_at DESC
        LIMIT $2 OFFSET $3
    `
	insertBookmarkQuery = `
        INSERT INTO bookmarks (id, story_id, owner_id, label, history_index, snapshot, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	getBookmarkQuery = `
        SELECT id, story_id, owner_id, label, history_index, snapshot, created_at
        FROM bookmarks WHERE id = $1
    `
	listBookmarksQuery = `
        SELECT id, story_id, owner_id, label, history_index, created_at
        FROM bookmarks WHERE story_id = $1
        ORDER BY created_at DESC
    `
)

type storySummaryRow struct {
	ID        uuid.UUID `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Title     string    `db:"title"`
	Status    string    `db:"status"`
	CoOp      bool      `db:"co_op"`
	Version   int64     `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

type bookmarkRow struct {
	ID           uuid.UUID `db:"id"`
	StoryID      uuid.UUID `db:"story_id"`
	OwnerID      string    `db:"owner_id"`
	Label        string    `db:"label"`
	HistoryIndex int       `db:"history_index"`
	Snapshot     []byte    `db:"snapshot"`
	CreatedAt    time.Time `db:"created_at"`
}

// PostgresStoryRepository stores each story as one JSONB snapshot with a version column.
type PostgresStoryRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ StoryRepository = (*PostgresStoryRepository)(nil)

func NewPostgresStoryRepository(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStoryRepository {
	return &PostgresStoryRepository{pool: pool, logger: logger.Named("PgStoryRepo")}
}

func (r *PostgresStoryRepository) Create(ctx context.Context, story *domain.Story) error {
	state, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("failed to marshal story %s: %w", story.ID, err)
	}
	_, err = r.pool.Exec(ctx, insertStoryQuery,
		story.ID, story.OwnerID, story.Title, string(story.Status), story.CoOp,
		story.Version, story.StateHash, state, story.CreatedAt, story.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert story", zap.Stringer("storyID", story.ID), zap.Error(err))
		return fmt.Errorf("failed to insert story %s: %w", story.ID, err)
	}
	return nil
}

func (r *PostgresStoryRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Story, error) {
	var state []byte
	if err := r.pool.QueryRow(ctx, getStoryStateQuery, id).Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: story %s", domain.ErrNotFound, id)
		}
		r.logger.Error("Failed to load story", zap.Stringer("storyID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to load story %s: %w", id, err)
	}
	var story domain.Story
	if err := json.Unmarshal(state, &story); err != nil {
		return nil, fmt.Errorf("failed to decode story %s: %w", id, err)
	}
	return &story, nil
}

func (r *PostgresStoryRepository) Save(ctx context.Context, story *domain.Story) error {
	return r.save(ctx, r.pool, story)
}

func (r *PostgresStoryRepository) save(ctx context.Context, q database.DBTX, story *domain.Story) error {
	state, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("failed to marshal story %s: %w", story.ID, err)
	}
	tag, err := q.Exec(ctx, updateStoryQuery,
		story.ID, story.Title, string(story.Status), story.CoOp,
		story.Version, story.StateHash, state, story.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update story", zap.Stringer("storyID", story.ID), zap.Error(err))
		return fmt.Errorf("failed to update story %s: %w", story.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, storyExistsQuery, story.ID).Scan(&exists); err == nil && !exists {
			return fmt.Errorf("%w: story %s", domain.ErrNotFound, story.ID)
		}
		r.logger.Warn("Version conflict on story save",
			zap.Stringer("storyID", story.ID), zap.Int64("version", story.Version))
		return fmt.Errorf("%w: story %s version %d", domain.ErrVersionConflict, story.ID, story.Version)
	}
	return nil
}

func (r *PostgresStoryRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.StorySummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []storySummaryRow
	if err := pgxscan.Select(ctx, r.pool, &rows, listStoriesForUserQry, userID, limit, offset); err != nil {
		r.logger.Error("Failed to list stories", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list stories for %s: %w", userID, err)
	}
	out := make([]domain.StorySummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.StorySummary{
			ID:        row.ID,
			OwnerID:   row.OwnerID,
			Title:     row.Title,
			Status:    domain.StoryStatus(row.Status),
			CoOp:      row.CoOp,
			Version:   row.Version,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}

func (r *PostgresStoryRepository) SaveWithBookmark(ctx context.Context, story *domain.Story, bookmark *domain.Bookmark) error {
	snapshot, err := json.Marshal(bookmark.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmark snapshot: %w", err)
	}
	return database.ExecuteInTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.save(ctx, tx, story); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertBookmarkQuery,
			bookmark.ID, bookmark.StoryID, bookmark.OwnerID, bookmark.Label,
			bookmark.HistoryIndex, snapshot, bookmark.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert bookmark %s: %w", bookmark.ID, err)
		}
		return nil
	})
}

func (r *PostgresStoryRepository) GetBookmark(ctx context.Context, id uuid.UUID) (*domain.Bookmark, error) {
	var row bookmarkRow
	if err := pgxscan.Get(ctx, r.pool, &row, getBookmarkQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: bookmark %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load bookmark %s: %w", id, err)
	}
	var snapshot domain.Story
	if err := json.Unmarshal(row.Snapshot, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode bookmark %s: %w", id, err)
	}
	b := row.toDomain()
	b.Snapshot = &snapshot
	return &b, nil
}

func (r *PostgresStoryRepository) ListBookmarks(ctx context.Context, storyID uuid.UUID) ([]domain.Bookmark, error) {
	var rows []bookmarkRow
	if err := pgxscan.Select(ctx, r.pool, &rows, listBookmarksQuery, storyID); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks for %s: %w", storyID, err)
	}
	out := make([]domain.Bookmark, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (row bookmarkRow) toDomain() domain.Bookmark {
	return domain.Bookmark{
		ID:           row.ID,
		StoryID:      row.StoryID,
		OwnerID:      row.OwnerID,
		Label:        row.Label,
		HistoryIndex: row.HistoryIndex,
		CreatedAt:    row.CreatedAt,
	}
}
