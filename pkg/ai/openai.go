package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const backendOpenAI = "openai"

// openAIClient talks to any OpenAI-compatible chat completion endpoint.
type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func newOpenAIClient(cfg Config, logger *zap.Logger) *openAIClient {
	oc := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &openAIClient{
		client: openaigo.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logger.Named("OpenAIClient"),
	}
}

func (c *openAIClient) GenerateText(ctx context.Context, userID, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	var usage UsageInfo
	if strings.TrimSpace(systemPrompt) == "" {
		observe(backendOpenAI, c.model, "error", time.Now(), usage)
		return "", usage, fmt.Errorf("%w: empty system prompt", ErrGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userInput})
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature, 1),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP, 1),
	})
	if err != nil {
		var apiErr *openaigo.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			observe(backendOpenAI, c.model, "rate_limited", started, usage)
			return "", usage, fmt.Errorf("%w: %w: %v", ErrGenerationFailed, ErrRateLimited, err)
		}
		c.logger.Warn("Chat completion failed",
			zap.String("userID", userID), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		observe(backendOpenAI, c.model, "error", started, usage)
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		observe(backendOpenAI, c.model, "error_empty_response", started, usage)
		return "", usage, fmt.Errorf("%w: %w", ErrGenerationFailed, ErrEmptyResponse)
	}

	usage = UsageInfo{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	observe(backendOpenAI, c.model, "success", started, usage)
	c.logger.Debug("Chat completion received",
		zap.String("userID", userID),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("promptTokens", usage.PromptTokens),
		zap.Int("completionTokens", usage.CompletionTokens))
	return resp.Choices[0].Message.Content, usage, nil
}

func (c *openAIClient) Close() error { return nil }
