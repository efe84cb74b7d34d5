package openai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

const (
	kindLanguageModel = "language model"

	// DefaultChatModel is used when no model is configured.
	DefaultChatModel = openai.GPT3Dot5Turbo
)

var _ domain.Completer = (*Completer)(nil)

// CompleterConfig holds the chat completion settings.
type CompleterConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float32
	MaxTokens         int
	RequestsPerSecond float64 // <= 0 disables pacing
	Burst             int
	Logger            *zap.Logger
}

// Completer sends prompts to an OpenAI-compatible chat completion endpoint.
type Completer struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewCompleter creates a language model client.
func NewCompleter(cfg *CompleterConfig) *Completer {
	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)

	// A zero temperature is dropped by omitempty on the wire.
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	return &Completer{
		client:      newClient(cfg.APIKey, cfg.BaseURL),
		model:       model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      cfg.Logger,
	}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for language model slot: %w: %w", domain.ErrRateLimited, err)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	metrics.LanguageModelDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LanguageModelRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", mapAPIError(kindLanguageModel, err, domain.ErrLanguageModelError)
	}
	if len(resp.Choices) == 0 {
		metrics.LanguageModelRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", fmt.Errorf("no completion choices: %w: %w", domain.ErrLanguageModelError, domain.ErrMalformedResponse)
	}

	metrics.LanguageModelRequestsTotal.WithLabelValues(c.model, "success").Inc()
	c.logger.Debug("Language model replied",
		zap.String("model", c.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
