package config

import (
	"fmt"
	"time"

	"novel-engine/shared/utils"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the server configuration loaded from the environment.
type Config struct {
	// Server
	Port            string        `envconfig:"SERVER_PORT" default:"8080"`
	Env             string        `envconfig:"ENV" default:"development"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Logging
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	LogOutput   string `envconfig:"LOG_OUTPUT" default:"stdout"`
	// Rotation, used when LOG_OUTPUT is a file.
	LogMaxSizeMB  int `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	LogMaxBackups int `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	LogMaxAgeDays int `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`

	// PostgreSQL. An empty DB_HOST keeps stories in memory.
	DBHost        string        `envconfig:"DB_HOST"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"novel_engine"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int32         `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE" default:"5m"`
	DBPassword    string        `ignored:"true"`

	// Redis snapshot cache. Empty address disables caching.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisCacheTTL time.Duration `envconfig:"REDIS_CACHE_TTL" default:"10m"`
	RedisPassword string        `ignored:"true"`

	// RabbitMQ. Empty URL disables publishing.
	RabbitMQURL     string `envconfig:"RABBITMQ_URL"`
	TurnEventsQueue string `envconfig:"TURN_EVENTS_QUEUE" default:"story_turn_events"`
	AssetTaskQueue  string `envconfig:"ASSET_TASK_QUEUE" default:"asset_generation_tasks"`

	// Narration service
	AIClientType  string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel       string        `envconfig:"AI_MODEL" default:"deepseek/deepseek-chat-v3-0324:free"`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	AIMaxRetries  int           `envconfig:"AI_MAX_RETRIES" default:"2"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.7"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"1500"`
	AIAPIKey      string        `ignored:"true"`

	// Assets
	AssetBaseURL string `envconfig:"ASSET_BASE_URL" default:"https://assets.example.com/scenes"`

	// Push notifications. Empty paths select stub senders.
	FCMCredentialsPath string `envconfig:"FCM_CREDENTIALS_PATH"`
	APNSCertPath       string `envconfig:"APNS_CERT_PATH"`
	APNSCertPassword   string `envconfig:"APNS_CERT_PASSWORD"`
	APNSTopic          string `envconfig:"APNS_TOPIC"`
	APNSProduction     bool   `envconfig:"APNS_PRODUCTION" default:"false"`

	// Async action tasks
	MaxPendingTasks int           `envconfig:"MAX_PENDING_TASKS" default:"256"`
	TaskRetention   time.Duration `envconfig:"TASK_RETENTION" default:"1h"`

	// Per-user limit on action and mini-game submissions.
	ActionRateLimit  uint          `envconfig:"ACTION_RATE_LIMIT" default:"10"`
	ActionRateWindow time.Duration `envconfig:"ACTION_RATE_WINDOW" default:"1m"`

	// Game rules file (YAML). Empty uses DefaultRules.
	RulesPath string `envconfig:"RULES_PATH"`

	JWTSecret string `ignored:"true"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig reads the environment and the secret files.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var err error
	if cfg.JWTSecret, err = utils.ReadSecret("jwt_secret", "JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.DBHost != "" {
		if cfg.DBPassword, err = utils.ReadSecret("db_password", "DB_PASSWORD"); err != nil {
			return nil, err
		}
	}
	// Optional secrets.
	cfg.RedisPassword, _ = utils.ReadSecret("redis_password", "REDIS_PASSWORD")
	cfg.AIAPIKey, _ = utils.ReadSecret("ai_api_key", "AI_API_KEY")

	return &cfg, nil
}
