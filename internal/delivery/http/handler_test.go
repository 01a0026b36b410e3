package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"novel-engine/internal/asset"
	"novel-engine/internal/config"
	deliveryhttp "novel-engine/internal/delivery/http"
	"novel-engine/internal/domain"
	"novel-engine/internal/messaging"
	narratorMocks "novel-engine/internal/narrator/mocks"
	"novel-engine/internal/notifier"
	"novel-engine/internal/repository"
	"novel-engine/internal/service"
	"novel-engine/pkg/taskmanager"
	"novel-engine/shared/authutils"
	sharedMiddleware "novel-engine/shared/middleware"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const jwtTestSecret = "handler-test-secret"

type noStream struct{}

func (noStream) Serve(w http.ResponseWriter, _ *http.Request, _ string) {
	w.WriteHeader(http.StatusTeapot)
}

type HandlerSuite struct {
	suite.Suite
	router   *gin.Engine
	narrator *narratorMocks.MockNarrator
	tokens   *notifier.MemoryTokenStore
	tasks    *taskmanager.Manager
	owner    string
	guest    string
}

func (s *HandlerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	s.narrator = narratorMocks.NewMockNarrator(s.T())
	s.tasks = taskmanager.New(taskmanager.Config{MaxTasks: 4})
	publisher := messaging.NewNoopPublisher(logger)
	svc := service.NewStoryService(service.Dependencies{
		Repo:     repository.NewMemoryStoryRepository(),
		Narrator: s.narrator,
		Tasks:    s.tasks,
		Events:   publisher,
		Assets:   asset.NewGenerator("https://assets.test", publisher, logger),
		Rules:    config.DefaultRules(),
	}, logger)

	s.tokens = notifier.NewMemoryTokenStore()
	devices := notifier.NewService(s.tokens, logger, notifier.NewStubSender(notifier.PlatformAndroid, logger))

	verifier, err := authutils.NewJWTVerifier(jwtTestSecret, logger)
	s.Require().NoError(err)

	s.router = gin.New()
	h := deliveryhttp.NewStoryHandler(svc, devices, noStream{}, logger)
	h.RegisterRoutes(s.router,
		sharedMiddleware.JWTAuth(verifier.VerifyToken, logger, false),
		sharedMiddleware.JWTAuth(verifier.VerifyToken, logger, true))

	s.owner = s.token("owner")
	s.guest = s.token("guest")
}

func (s *HandlerSuite) TearDownTest() {
	_ = s.tasks.Shutdown(context.Background())
}

func (s *HandlerSuite) token(userID string) string {
	tok, err := authutils.IssueToken(jwtTestSecret, userID, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *HandlerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (s *HandlerSuite) startedStory(coOp bool) domain.Story {
	w := s.do(http.MethodPost, "/stories", s.owner, service.CreateStoryRequest{
		Title:        "Salt and Iron",
		LocationName: "Docks",
		CoOp:         coOp,
		Characters: []service.CharacterSeed{
			{Name: "Mira", Playable: true},
			{Name: "Kai", Playable: true},
		},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var story domain.Story
	s.decode(w, &story)

	w = s.do(http.MethodPost, "/stories/"+story.ID.String()+"/start", s.owner, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.decode(w, &story)
	s.Require().Equal(domain.StatusPlaying, story.Status)
	return story
}

func (s *HandlerSuite) TestRequiresAuth() {
	w := s.do(http.MethodGet, "/stories", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerSuite) TestCreateValidation() {
	w := s.do(http.MethodPost, "/stories", s.owner, map[string]any{"title": "No characters"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestStoryIsPrivate() {
	story := s.startedStory(false)
	w := s.do(http.MethodGet, "/stories/"+story.ID.String(), s.guest, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/stories/not-a-uuid", s.owner, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestSubmitAction() {
	story := s.startedStory(false)
	s.narrator.On("Propose", mock.Anything, mock.Anything).
		Return(&domain.Proposal{NarrativeText: "The tide turns."}, nil).Once()

	w := s.do(http.MethodPost, "/stories/"+story.ID.String()+"/actions", s.owner,
		service.ActionRequest{CharacterID: story.ActiveCharacterID, Text: "Wait for the tide"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var res service.TurnResult
	s.decode(w, &res)
	s.Equal("The tide turns.", res.Entry.OutcomeText)
	s.Equal(story.Version+1, res.Story.Version)

	w = s.do(http.MethodGet, "/stories", s.owner, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var list struct {
		Data []domain.StorySummary `json:"data"`
	}
	s.decode(w, &list)
	s.Len(list.Data, 1)
}

func (s *HandlerSuite) TestRejectedActionMapsStatus() {
	story := s.startedStory(false)

	s.Run("empty text", func() {
		w := s.do(http.MethodPost, "/stories/"+story.ID.String()+"/actions", s.owner,
			map[string]any{"characterId": story.ActiveCharacterID, "text": ""})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("unparseable proposal", func() {
		s.narrator.On("Propose", mock.Anything, mock.Anything).
			Return(nil, domain.ErrProposalRejected).Once()
		w := s.do(http.MethodPost, "/stories/"+story.ID.String()+"/actions", s.owner,
			service.ActionRequest{CharacterID: story.ActiveCharacterID, Text: "Shout"})
		s.Equal(http.StatusBadGateway, w.Code)
	})

	s.Run("no mini-game", func() {
		w := s.do(http.MethodPost, "/stories/"+story.ID.String()+"/minigame", s.owner,
			map[string]any{"characterId": story.ActiveCharacterID, "move": "answer", "payload": map[string]any{"text": "fog"}})
		s.Equal(http.StatusConflict, w.Code)
	})

	s.Run("unknown move", func() {
		w := s.do(http.MethodPost, "/stories/"+story.ID.String()+"/minigame", s.owner,
			map[string]any{"characterId": story.ActiveCharacterID, "move": "dance"})
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestAsyncActionTask() {
	story := s.startedStory(false)
	s.narrator.On("Propose", mock.Anything, mock.Anything).
		Return(&domain.Proposal{NarrativeText: "Gulls scatter."}, nil).Once()

	w := s.do(http.MethodPost, "/stories/"+story.ID.String()+"/actions?async=true", s.owner,
		service.ActionRequest{CharacterID: story.ActiveCharacterID, Text: "Throw bread"})
	s.Require().Equal(http.StatusAccepted, w.Code, w.Body.String())
	var accepted struct {
		TaskID uuid.UUID `json:"taskId"`
	}
	s.decode(w, &accepted)

	s.Eventually(func() bool {
		w := s.do(http.MethodGet, "/tasks/"+accepted.TaskID.String(), s.owner, nil)
		var task taskmanager.Task
		if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &task) != nil {
			return false
		}
		return task.Status == taskmanager.TaskStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	w = s.do(http.MethodGet, "/tasks/"+accepted.TaskID.String(), s.guest, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestBookmarksAndWallet() {
	story := s.startedStory(false)
	base := "/stories/" + story.ID.String()

	w := s.do(http.MethodPost, base+"/bookmarks", s.owner, map[string]string{"label": "Before the storm"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var bm map[string]any
	s.decode(w, &bm)
	s.NotContains(bm, "snapshot")

	w = s.do(http.MethodGet, base+"/bookmarks", s.owner, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/bookmarks/"+bm["id"].(string)+"/fork", s.owner, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var fork domain.Story
	s.decode(w, &fork)
	s.NotEqual(story.ID, fork.ID)

	w = s.do(http.MethodGet, base+"/wallet", s.owner, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var wallet service.WalletView
	s.decode(w, &wallet)
	s.Equal(config.DefaultRules().Economy.StartingBookmarks-1, wallet.Bookmarks)
}

func (s *HandlerSuite) TestCoOpJoin() {
	story := s.startedStory(true)
	var kai uuid.UUID
	for _, c := range story.Characters {
		if c.Name == "Kai" {
			kai = c.ID
		}
	}

	w := s.do(http.MethodPost, "/stories/"+story.ID.String()+"/join", s.guest,
		service.JoinRequest{DisplayName: "Bo", CharacterID: kai})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/stories/"+story.ID.String()+"/actions", s.guest,
		service.ActionRequest{CharacterID: kai, Text: "Grab the rope"})
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlerSuite) TestDevices() {
	w := s.do(http.MethodPost, "/devices", s.owner, map[string]string{"token": "fcm-1", "platform": notifier.PlatformAndroid})
	s.Require().Equal(http.StatusNoContent, w.Code, w.Body.String())
	tokens, err := s.tokens.Tokens(context.Background(), "owner")
	s.Require().NoError(err)
	s.Len(tokens, 1)

	w = s.do(http.MethodPost, "/devices", s.owner, map[string]string{"token": "x", "platform": "blackberry"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/devices/fcm-1", s.owner, nil)
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *HandlerSuite) TestWebsocketAcceptsQueryToken() {
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+s.owner, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusTeapot, w.Code)
}

func (s *HandlerSuite) TestThrottleGuardsSubmissions() {
	logger := zap.NewNop()
	verifier, err := authutils.NewJWTVerifier(jwtTestSecret, logger)
	s.Require().NoError(err)

	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Minute, Limit: 1})
	throttle := ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, _ ratelimit.Info) {
			c.AbortWithStatus(http.StatusTooManyRequests)
		},
		KeyFunc: func(c *gin.Context) string {
			id, _ := sharedMiddleware.UserID(c)
			return id
		},
	})

	router := gin.New()
	h := deliveryhttp.NewStoryHandler(nil, nil, noStream{}, logger)
	h.RegisterRoutes(router,
		sharedMiddleware.JWTAuth(verifier.VerifyToken, logger, false),
		sharedMiddleware.JWTAuth(verifier.VerifyToken, logger, true),
		throttle)

	post := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/stories/not-a-uuid/actions", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	s.Equal(http.StatusBadRequest, post(s.owner))
	s.Equal(http.StatusTooManyRequests, post(s.owner))
	s.Equal(http.StatusBadRequest, post(s.guest), "limit is per user")
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}
