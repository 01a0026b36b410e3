package service

import (
	"context"
	"sync"
	"time"

	"novel-engine/internal/asset"
	"novel-engine/internal/config"
	"novel-engine/internal/domain"
	"novel-engine/internal/economy"
	"novel-engine/internal/ledger"
	"novel-engine/internal/messaging"
	"novel-engine/internal/minigame"
	"novel-engine/internal/narrator"
	"novel-engine/internal/notifier"
	"novel-engine/internal/objective"
	"novel-engine/internal/relationship"
	"novel-engine/internal/repository"
	"novel-engine/internal/turn"
	"novel-engine/pkg/taskmanager"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoryService is the narrative turn controller. Every mutating call is all-or-nothing:
// on error the stored story is exactly what it was before the call.
type StoryService interface {
	CreateStory(ctx context.Context, userID string, req CreateStoryRequest) (*domain.Story, error)
	StartStory(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error)
	GetStory(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error)
	ListStories(ctx context.Context, userID string, limit, offset int) ([]domain.StorySummary, error)

	// SubmitAction runs one turn synchronously.
	SubmitAction(ctx context.Context, userID string, storyID uuid.UUID, req ActionRequest) (*TurnResult, error)
	// SubmitActionAsync validates the action and runs the turn in the background.
	SubmitActionAsync(ctx context.Context, userID string, storyID uuid.UUID, req ActionRequest) (uuid.UUID, error)
	GetActionTask(ctx context.Context, userID string, taskID uuid.UUID) (taskmanager.Task, error)
	// CancelAction abandons the pending action of the story. Its proposal is never applied.
	CancelAction(ctx context.Context, userID string, storyID uuid.UUID) error

	PlayMiniGame(ctx context.Context, userID string, storyID uuid.UUID, req MiniGameRequest) (*MiniGameResult, error)
	AcknowledgeRelationshipEvent(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error)
	ContinueChapter(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error)

	JoinStory(ctx context.Context, userID string, storyID uuid.UUID, req JoinRequest) (*domain.Story, error)
	LeaveStory(ctx context.Context, userID string, storyID uuid.UUID) (*domain.Story, error)
	SpendStatPoint(ctx context.Context, userID string, storyID, characterID uuid.UUID, stat domain.Stat) (*domain.Story, error)

	GetWallet(ctx context.Context, userID string, storyID uuid.UUID) (*WalletView, error)
	PurchaseBookmark(ctx context.Context, userID string, storyID uuid.UUID) (*WalletView, error)
	CreateBookmark(ctx context.Context, userID string, storyID uuid.UUID, label string) (*domain.Bookmark, error)
	ListBookmarks(ctx context.Context, userID string, storyID uuid.UUID) ([]domain.Bookmark, error)
	ForkFromBookmark(ctx context.Context, userID string, bookmarkID uuid.UUID) (*domain.Story, error)

	RelationshipHistory(ctx context.Context, userID string, storyID, characterA, characterB uuid.UUID) ([]domain.HistoryEntry, error)
}

// Broadcaster fans committed state out to connected clients of a story.
type Broadcaster interface {
	BroadcastStory(storyID uuid.UUID, messageType string, payload any)
}

// Dependencies are the collaborators of the story service. Notifier and Broadcaster may be nil.
type Dependencies struct {
	Repo        repository.StoryRepository
	Narrator    narrator.Narrator
	Tasks       *taskmanager.Manager
	Events      messaging.EventPublisher
	Assets      *asset.Generator
	Notifier    notifier.TurnNotifier
	Broadcaster Broadcaster
	Rules       config.Rules
}

// Option customises the service.
type Option func(*storyServiceImpl)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *storyServiceImpl) { s.now = now }
}

// WithMiniGameOptions passes options to the mini-game engine.
func WithMiniGameOptions(opts ...minigame.Option) Option {
	return func(s *storyServiceImpl) { s.miniGameOpts = append(s.miniGameOpts, opts...) }
}

type storyServiceImpl struct {
	repo        repository.StoryRepository
	narrator    narrator.Narrator
	tasks       *taskmanager.Manager
	events      messaging.EventPublisher
	assets      *asset.Generator
	notifier    notifier.TurnNotifier
	broadcaster Broadcaster
	rules       config.Rules

	ledger        *ledger.Ledger
	relationships *relationship.Graph
	miniGames     *minigame.Engine
	objectives    *objective.Tracker
	turns         *turn.Arbitrator
	economy       *economy.Manager

	busyMu   sync.Mutex
	busy     map[uuid.UUID]struct{} // stories with a write in progress
	inflight sync.Map               // storyID -> context.CancelFunc

	miniGameOpts []minigame.Option
	now          func() time.Time
	logger       *zap.Logger
}

// NewStoryService wires the deterministic engines around the given collaborators.
func NewStoryService(deps Dependencies, logger *zap.Logger, opts ...Option) StoryService {
	s := &storyServiceImpl{
		repo:        deps.Repo,
		narrator:    deps.Narrator,
		tasks:       deps.Tasks,
		events:      deps.Events,
		assets:      deps.Assets,
		notifier:    deps.Notifier,
		broadcaster: deps.Broadcaster,
		rules:       deps.Rules,
		busy:        make(map[uuid.UUID]struct{}),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.Named("StoryService"),
	}
	for _, o := range opts {
		o(s)
	}

	s.economy = economy.NewManager(deps.Rules.Economy, logger)
	s.ledger = ledger.New(deps.Rules.Character, logger)
	s.relationships = relationship.New(deps.Rules.Relationship, logger)
	s.objectives = objective.NewTracker(deps.Rules.Objectives, s.economy, logger)
	s.turns = turn.NewArbitrator(logger)
	s.miniGames = minigame.NewEngine(deps.Rules.MiniGames, deps.Narrator, logger, s.miniGameOpts...)
	return s
}
