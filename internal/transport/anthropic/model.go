// Package anthropic drafts resolutions with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/metrics"
	"github.com/kailas-cloud/ticketlens/internal/resilience"
	"github.com/kailas-cloud/ticketlens/internal/usecase/resolution"
)

const (
	provider         = "anthropic"
	defaultMaxTokens = 1024
)

// Config holds the Anthropic model settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	// RequestsPerSecond throttles outbound calls; 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int
	Logger            *zap.Logger
}

// Model implements resolution.Model over Messages.New.
type Model struct {
	client      sdk.Client
	model       string
	temperature *float64
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// New creates a Model. SDK-level retries are off; the resolution agent owns the retry loop.
func New(cfg Config) *Model {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}

	return &Model{
		client:      sdk.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     limiter,
		logger:      logger,
	}
}

// Generate sends one system + user turn and returns the concatenated text blocks.
func (m *Model) Generate(ctx context.Context, p resolution.Prompt) (string, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("anthropic rate limiter: %w", err)
		}
	}

	maxTokens := int64(defaultMaxTokens)
	if p.MaxTokens > 0 {
		maxTokens = int64(p.MaxTokens)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(m.model),
		MaxTokens: maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(p.User))},
	}
	if p.System != "" {
		// The system prompt is identical across runs and worth caching.
		params.System = []sdk.TextBlockParam{{
			Text:         p.System,
			CacheControl: sdk.NewCacheControlEphemeralParam(),
		}}
	}
	if m.temperature != nil {
		params.Temperature = sdk.Float(*m.temperature)
	}

	start := time.Now()
	msg, err := m.client.Messages.New(ctx, params)
	metrics.ModelRequestDuration.WithLabelValues(provider, m.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues(provider, m.model, "error").Inc()
		m.logger.Warn("anthropic message failed", zap.String("model", m.model), zap.Error(err))
		return "", classify(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		metrics.ModelRequestsTotal.WithLabelValues(provider, m.model, "empty").Inc()
		return "", fmt.Errorf("anthropic returned no text (stop_reason %s): %w",
			msg.StopReason, domain.ErrMalformedOutput)
	}

	metrics.ModelRequestsTotal.WithLabelValues(provider, m.model, "success").Inc()
	m.logger.Debug("anthropic message",
		zap.String("model", m.model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
		zap.Int64("cache_read_tokens", msg.Usage.CacheReadInputTokens),
		zap.String("stop_reason", string(msg.StopReason)),
	)
	return text, nil
}

// classify maps SDK errors onto domain sentinels and marks retryable ones transient.
func classify(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("anthropic request failed: %w: %w", domain.ErrModelProviderError, err)
		if resilience.IsTransient(err) {
			return resilience.NewTransientError(wrapped, 0)
		}
		return wrapped
	}

	status := apiErr.StatusCode
	var wrapped error
	if status == http.StatusTooManyRequests {
		wrapped = fmt.Errorf("anthropic API error %d: %w: %w", status, domain.ErrModelProviderError, domain.ErrRateLimited)
	} else {
		wrapped = fmt.Errorf("anthropic API error %d: %w", status, domain.ErrModelProviderError)
	}
	// 529 is Anthropic's "overloaded".
	if resilience.IsTransientHTTPStatus(status) || status == 529 {
		return resilience.NewTransientError(wrapped, status)
	}
	return wrapped
}
