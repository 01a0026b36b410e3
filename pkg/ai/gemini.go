package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const backendGemini = "gemini"

type geminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func newGeminiClient(ctx context.Context, cfg Config, logger *zap.Logger) (*geminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini client requires an api key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiClient{client: client, model: cfg.Model, logger: logger.Named("GeminiClient")}, nil
}

func (c *geminiClient) GenerateText(ctx context.Context, userID, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	var usage UsageInfo
	if strings.TrimSpace(systemPrompt) == "" {
		observe(backendGemini, c.model, "error", time.Now(), usage)
		return "", usage, fmt.Errorf("%w: empty system prompt", ErrGenerationFailed)
	}

	model := c.client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	if params.Temperature != nil {
		model.SetTemperature(float32(*params.Temperature))
	}
	if params.TopP != nil {
		model.SetTopP(float32(*params.TopP))
	}
	if params.MaxTokens != nil {
		model.SetMaxOutputTokens(int32(*params.MaxTokens))
	}
	if userInput == "" {
		userInput = "Continue."
	}

	started := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(userInput))
	if err != nil {
		c.logger.Warn("Gemini generation failed", zap.String("userID", userID), zap.Error(err))
		observe(backendGemini, c.model, "error", started, usage)
		return "", usage, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		observe(backendGemini, c.model, "error_empty_response", started, usage)
		return "", usage, fmt.Errorf("%w: %w", ErrGenerationFailed, ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		observe(backendGemini, c.model, "error_empty_response", started, usage)
		return "", usage, fmt.Errorf("%w: %w", ErrGenerationFailed, ErrEmptyResponse)
	}
	if resp.UsageMetadata != nil {
		usage = UsageInfo{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	observe(backendGemini, c.model, "success", started, usage)
	return sb.String(), usage, nil
}

func (c *geminiClient) Close() error { return c.client.Close() }
