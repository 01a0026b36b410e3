package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config selects and configures a backend.
type Config struct {
	ClientType string // openai | ollama | gemini
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient builds the backend named by cfg.ClientType, wrapped with retries when MaxRetries > 0.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (Client, error) {
	var (
		client Client
		err    error
	)
	switch strings.ToLower(cfg.ClientType) {
	case backendOpenAI, "":
		client = newOpenAIClient(cfg, logger)
	case backendOllama:
		client, err = newOllamaClient(cfg, logger)
	case backendGemini:
		client, err = newGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ai client type %q", cfg.ClientType)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("AI client created",
		zap.String("type", cfg.ClientType),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout))
	if cfg.MaxRetries > 0 {
		return WithRetries(client, cfg.MaxRetries, cfg.RetryDelay, logger), nil
	}
	return client, nil
}

type retryingClient struct {
	next       Client
	maxRetries int
	delay      time.Duration
	logger     *zap.Logger
}

// WithRetries retries failed generations up to maxRetries extra times.
// Context cancellation and deadline errors are returned immediately.
func WithRetries(next Client, maxRetries int, delay time.Duration, logger *zap.Logger) Client {
	return &retryingClient{next: next, maxRetries: maxRetries, delay: delay, logger: logger.Named("AIRetry")}
}

func (r *retryingClient) GenerateText(ctx context.Context, userID, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Warn("Retrying generation",
				zap.Int("attempt", attempt), zap.String("userID", userID), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", UsageInfo{}, fmt.Errorf("%w: %v", ErrGenerationFailed, ctx.Err())
			case <-time.After(r.delay * time.Duration(attempt)):
			}
		}
		text, usage, err := r.next.GenerateText(ctx, userID, systemPrompt, userInput, params)
		if err == nil {
			return text, usage, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}
	return "", UsageInfo{}, lastErr
}

func (r *retryingClient) Close() error { return r.next.Close() }
