package repository_test

import (
	"context"
	"testing"
	"time"

	"novel-engine/internal/domain"
	"novel-engine/internal/repository"
	"novel-engine/pkg/migration"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

type StoreIntegrationSuite struct {
	suite.Suite
	pgContainer    *postgres.PostgresContainer
	redisContainer *tcredis.RedisContainer
	pool           *pgxpool.Pool
	redis          *goredis.Client
	repo           repository.StoryRepository
}

func (s *StoreIntegrationSuite) SetupSuite() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("novel_engine_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(2*time.Minute),
		),
	)
	s.Require().NoError(err)
	s.pgContainer = pgContainer
	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(ctx, dsn)
	s.Require().NoError(err)
	migrator := migration.NewMigrator(migration.Config{
		MigrationsFS:   repository.Migrations,
		MigrationsPath: repository.MigrationsPath,
	}, s.pool, zap.NewNop())
	s.Require().NoError(migrator.Up(ctx))

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.redisContainer = redisContainer
	redisURL, err := redisContainer.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := goredis.ParseURL(redisURL)
	s.Require().NoError(err)
	s.redis = goredis.NewClient(opts)

	pg := repository.NewPostgresStoryRepository(s.pool, zap.NewNop())
	s.repo = repository.NewCachedStoryRepository(pg, s.redis, time.Minute, zap.NewNop())
}

func (s *StoreIntegrationSuite) TearDownSuite() {
	ctx := context.Background()
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redisContainer != nil {
		s.NoError(s.redisContainer.Terminate(ctx))
	}
	if s.pgContainer != nil {
		s.NoError(s.pgContainer.Terminate(ctx))
	}
}

func (s *StoreIntegrationSuite) TestCreateGetSave() {
	ctx := context.Background()
	story := newStory("user-1")
	story.ActiveMiniGame = &domain.RiddleChallenge{Question: "What has keys but no locks?", AcceptableAnswers: []string{"a piano"}}
	s.Require().NoError(s.repo.Create(ctx, story))

	got, err := s.repo.Get(ctx, story.ID)
	s.Require().NoError(err)
	s.Equal(story.Title, got.Title)
	s.Require().IsType(&domain.RiddleChallenge{}, got.ActiveMiniGame)

	next := got.Clone()
	next.Version = 2
	next.Status = domain.StatusChapterEnd
	next.StateHash = "abc"
	s.Require().NoError(s.repo.Save(ctx, next))
	s.ErrorIs(s.repo.Save(ctx, next), domain.ErrVersionConflict)

	s.redis.FlushAll(ctx)
	reloaded, err := s.repo.Get(ctx, story.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusChapterEnd, reloaded.Status)
	s.EqualValues(2, reloaded.Version)
	s.Equal("abc", s.repo.(*repository.CachedStoryRepository).StateHash(ctx, story.ID))
}

func (s *StoreIntegrationSuite) TestListForUserIncludesCoOpPlayers() {
	ctx := context.Background()
	host := newStory("host-" + uuid.NewString())
	host.CoOp = true
	guest := "guest-" + uuid.NewString()
	host.Players = []domain.Player{{UserID: guest, CharacterID: host.Characters[0].ID}}
	s.Require().NoError(s.repo.Create(ctx, host))

	list, err := s.repo.ListForUser(ctx, guest, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(host.ID, list[0].ID)
	s.True(list[0].CoOp)
}

func (s *StoreIntegrationSuite) TestBookmarkTransaction() {
	ctx := context.Background()
	story := newStory("user-1")
	s.Require().NoError(s.repo.Create(ctx, story))

	next := story.Clone()
	next.Version = 2
	b := &domain.Bookmark{
		ID: uuid.New(), StoryID: story.ID, OwnerID: "user-1", Label: "dock",
		HistoryIndex: 0, Snapshot: story.Clone(), CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.repo.SaveWithBookmark(ctx, next, b))

	got, err := s.repo.GetBookmark(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal("dock", got.Label)
	s.EqualValues(1, got.Snapshot.Version)

	stale := story.Clone()
	stale.Version = 2
	failed := &domain.Bookmark{ID: uuid.New(), StoryID: story.ID, Snapshot: stale, CreatedAt: time.Now().UTC()}
	s.ErrorIs(s.repo.SaveWithBookmark(ctx, stale, failed), domain.ErrVersionConflict)
	_, err = s.repo.GetBookmark(ctx, failed.ID)
	s.ErrorIs(err, domain.ErrNotFound, "bookmark insert is rolled back with the story update")
}

func TestStoreIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode.")
	}
	suite.Run(t, new(StoreIntegrationSuite))
}
