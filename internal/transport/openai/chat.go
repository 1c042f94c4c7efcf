package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/metrics"
	"github.com/kailas-cloud/ticketlens/internal/usecase/resolution"
)

// ChatConfig holds the resolution model settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	// RequestsPerSecond throttles outbound calls; 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int
	Provider          string
	Logger            *zap.Logger
}

// ChatModel drafts resolutions through an OpenAI-compatible chat completions API.
type ChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
	provider    string
	logger      *zap.Logger
}

// NewChatModel creates a chat completions model client.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}

	return &ChatModel{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     limiter,
		provider:    provider,
		logger:      logger,
	}
}

// Generate implements resolution.Model. The model is asked for a JSON object.
func (m *ChatModel) Generate(ctx context.Context, p resolution.Prompt) (string, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("chat rate limiter: %w", err)
		}
	}

	req := openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: m.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if p.MaxTokens > 0 {
		req.MaxTokens = p.MaxTokens
	}

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, req)
	metrics.ModelRequestDuration.WithLabelValues(m.provider, m.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues(m.provider, m.model, "error").Inc()
		m.logger.Warn("chat completion failed", zap.String("model", m.model), zap.Error(err))
		return "", parseAPIError("chat", err, domain.ErrModelProviderError)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.ModelRequestsTotal.WithLabelValues(m.provider, m.model, "empty").Inc()
		return "", fmt.Errorf("empty chat completion: %w", domain.ErrMalformedOutput)
	}

	metrics.ModelRequestsTotal.WithLabelValues(m.provider, m.model, "success").Inc()
	m.logger.Debug("chat completion",
		zap.String("model", m.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)
	return resp.Choices[0].Message.Content, nil
}
