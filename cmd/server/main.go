package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"novel-engine/internal/asset"
	"novel-engine/internal/config"
	deliveryhttp "novel-engine/internal/delivery/http"
	"novel-engine/internal/delivery/websocket"
	"novel-engine/internal/messaging"
	"novel-engine/internal/narrator"
	"novel-engine/internal/notifier"
	"novel-engine/internal/repository"
	"novel-engine/internal/service"
	"novel-engine/pkg/ai"
	"novel-engine/pkg/database"
	"novel-engine/pkg/migration"
	"novel-engine/pkg/taskmanager"
	"novel-engine/shared/authutils"
	sharedLogger "novel-engine/shared/logger"
	sharedMiddleware "novel-engine/shared/middleware"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := sharedLogger.New(sharedLogger.Config{
		Level:      cfg.LogLevel,
		Encoding:   cfg.LogEncoding,
		OutputPath: cfg.LogOutput,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		logger.Fatal("Failed to load game rules", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Storage ---
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = connectRedis(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var repo repository.StoryRepository
	if cfg.DBHost != "" {
		db, err := database.New(ctx, database.Config{
			DSN:         cfg.GetDSN(),
			MaxConns:    cfg.DBMaxConns,
			MaxConnIdle: cfg.DBIdleTimeout,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer db.Close()

		migrator := migration.NewMigrator(migration.Config{
			MigrationsFS:   repository.Migrations,
			MigrationsPath: repository.MigrationsPath,
		}, db.Pool, logger)
		if err := migrator.Up(ctx); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		repo = repository.NewPostgresStoryRepository(db.Pool, logger)
	} else {
		logger.Warn("DB_HOST is empty, stories are kept in memory")
		repo = repository.NewMemoryStoryRepository()
	}
	if redisClient != nil {
		repo = repository.NewCachedStoryRepository(repo, redisClient, cfg.RedisCacheTTL, logger)
	}

	// --- Messaging ---
	var publisher interface {
		messaging.EventPublisher
		messaging.AssetTaskPublisher
	}
	if cfg.RabbitMQURL != "" {
		conn, err := connectRabbitMQ(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer conn.Close()
		rmq, err := messaging.NewRabbitMQPublisher(conn, cfg.TurnEventsQueue, cfg.AssetTaskQueue, logger)
		if err != nil {
			logger.Fatal("Failed to create RabbitMQ publisher", zap.Error(err))
		}
		defer rmq.Close()
		publisher = rmq
	} else {
		logger.Warn("RABBITMQ_URL is empty, events are only logged")
		publisher = messaging.NewNoopPublisher(logger)
	}

	// --- Narration ---
	aiClient, err := ai.NewClient(ctx, ai.Config{
		ClientType: cfg.AIClientType,
		BaseURL:    cfg.AIBaseURL,
		APIKey:     cfg.AIAPIKey,
		Model:      cfg.AIModel,
		Timeout:    cfg.AITimeout,
		MaxRetries: cfg.AIMaxRetries,
		RetryDelay: time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create AI client", zap.Error(err))
	}
	defer aiClient.Close()

	temperature, maxTokens := cfg.AITemperature, cfg.AIMaxTokens
	storyteller := narrator.New(aiClient,
		narrator.NewPromptBuilder(ai.NewTokenCounter(cfg.AIModel), rules.Turn.HistoryTokenBudget),
		ai.GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens},
		rules.Turn.NarratorTimeout, logger)

	// --- Push ---
	var tokenStore notifier.TokenStore = notifier.NewMemoryTokenStore()
	if redisClient != nil {
		tokenStore = notifier.NewRedisTokenStore(redisClient)
	}
	pushService := notifier.NewService(tokenStore, logger, pushSenders(ctx, cfg, logger)...)

	// --- Core ---
	tasks := taskmanager.New(taskmanager.Config{MaxTasks: cfg.MaxPendingTasks})

	var svc service.StoryService
	hub := websocket.NewHub(func(ctx context.Context, userID string, storyID uuid.UUID) error {
		_, err := svc.GetStory(ctx, userID, storyID)
		return err
	}, cfg.AllowedOrigins, logger)
	tasks.SetNotifier(hub)

	svc = service.NewStoryService(service.Dependencies{
		Repo:        repo,
		Narrator:    storyteller,
		Tasks:       tasks,
		Events:      publisher,
		Assets:      asset.NewGenerator(cfg.AssetBaseURL, publisher, logger),
		Notifier:    pushService,
		Broadcaster: hub,
		Rules:       rules,
	}, logger)

	// --- HTTP ---
	verifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, logger)
	if err != nil {
		logger.Fatal("Failed to create JWT verifier", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(sharedMiddleware.GinZapLogger(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", sharedMiddleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	handler := deliveryhttp.NewStoryHandler(svc, pushService, hub, logger)
	handler.RegisterRoutes(router.Group("/api/v1"),
		sharedMiddleware.JWTAuth(verifier.VerifyToken, logger, false),
		sharedMiddleware.JWTAuth(verifier.VerifyToken, logger, true),
		actionRateLimiter(cfg, redisClient, logger))

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	go func() {
		ticker := time.NewTicker(cfg.TaskRetention / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := tasks.Cleanup(cfg.TaskRetention); n > 0 {
					logger.Debug("Finished tasks removed", zap.Int("count", n))
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	hub.Close()
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		logger.Error("Pending actions did not finish", zap.Error(err))
	}
	cancel()
	logger.Info("Server exiting")
}

// actionRateLimiter throttles turn submissions per user. Counters live in Redis when it is configured.
func actionRateLimiter(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) gin.HandlerFunc {
	var store ratelimit.Store
	if redisClient != nil {
		store = ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: redisClient,
			Rate:        cfg.ActionRateWindow,
			Limit:       cfg.ActionRateLimit,
		})
	} else {
		store = ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  cfg.ActionRateWindow,
			Limit: cfg.ActionRateLimit,
		})
	}
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			userID, _ := sharedMiddleware.UserID(c)
			logger.Warn("Action rate limit exceeded",
				zap.String("userID", userID),
				zap.Time("resetTime", info.ResetTime),
				zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, deliveryhttp.APIError{
				Code:    "rate_limited",
				Message: "Too many actions. Try again in " + time.Until(info.ResetTime).Round(time.Second).String(),
			})
		},
		KeyFunc: func(c *gin.Context) string {
			if userID, ok := sharedMiddleware.UserID(c); ok {
				return userID
			}
			return c.ClientIP()
		},
	})
}

// pushSenders returns real FCM and APNs senders when credentials are configured, stubs otherwise.
func pushSenders(ctx context.Context, cfg *config.Config, logger *zap.Logger) []notifier.PlatformSender {
	android := notifier.NewStubSender(notifier.PlatformAndroid, logger)
	if cfg.FCMCredentialsPath != "" {
		s, err := notifier.NewFCMSender(ctx, cfg.FCMCredentialsPath, logger)
		if err != nil {
			logger.Error("FCM sender disabled", zap.Error(err))
		} else {
			android = s
		}
	}
	ios := notifier.NewStubSender(notifier.PlatformIOS, logger)
	if cfg.APNSCertPath != "" {
		s, err := notifier.NewAPNSSender(cfg.APNSCertPath, cfg.APNSCertPassword, cfg.APNSTopic, cfg.APNSProduction, logger)
		if err != nil {
			logger.Error("APNs sender disabled", zap.Error(err))
		} else {
			ios = s
		}
	}
	return []notifier.PlatformSender{android, ios}
}

func connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	const maxRetries = 5
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Ping(pingCtx).Err()
		pingCancel()
		if err == nil {
			logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
			return client, nil
		}
		logger.Warn("Redis ping failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	_ = client.Close()
	return nil, fmt.Errorf("unable to ping redis after %d attempts: %w", maxRetries, err)
}

func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
