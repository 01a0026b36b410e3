package ai

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrGenerationFailed wraps every failure of a text-generation backend.
	ErrGenerationFailed = errors.New("ai generation failed")
	// ErrRateLimited is joined with ErrGenerationFailed when the backend signals throttling.
	ErrRateLimited = errors.New("ai backend rate limited")
	// ErrEmptyResponse is joined with ErrGenerationFailed when the backend returned no text.
	ErrEmptyResponse = errors.New("ai backend returned empty response")
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novel_engine_ai_requests_total",
			Help: "Total number of requests to the text generation backend.",
		},
		[]string{"backend", "model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novel_engine_ai_request_duration_seconds",
			Help:    "Histogram of text generation request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novel_engine_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"backend", "model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novel_engine_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"backend", "model"},
	)
)

// GenerationParams are optional sampling settings. Nil means backend default.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo is the token accounting reported by the backend (zero when unknown).
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client generates text from a system prompt and a user message.
type Client interface {
	GenerateText(ctx context.Context, userID, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error)
	Close() error
}

func observe(backend, model, status string, started time.Time, usage UsageInfo) {
	aiRequestsTotal.WithLabelValues(backend, model, status).Inc()
	if status != "success" {
		return
	}
	aiRequestDuration.WithLabelValues(backend, model).Observe(time.Since(started).Seconds())
	if usage.PromptTokens > 0 {
		aiPromptTokens.WithLabelValues(backend, model).Observe(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		aiCompletionTokens.WithLabelValues(backend, model).Observe(float64(usage.CompletionTokens))
	}
}

func float32Val(f *float64, def float32) float32 {
	if f == nil {
		return def
	}
	return float32(*f)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
