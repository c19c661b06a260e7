package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/metrics"
	"github.com/factorymind/backend/pkg/circuitbreaker"
	"github.com/factorymind/backend/pkg/logger"
)

// OpenAI talks to any OpenAI-compatible chat completion endpoint (OpenAI,
// Groq, local gateways) selected via baseURL.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
}

func NewOpenAI(apiKey, baseURL, model string, temperature float32, maxTokens, timeoutSec int) *OpenAI {
	if timeoutSec <= 0 {
		timeoutSec = 60
	}

	cb := circuitbreaker.New("completion", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("base_url", baseURL),
	)

	return &OpenAI{
		client:      newAPIClient(apiKey, baseURL),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          cb,
	}
}

func newAPIClient(apiKey, baseURL string) *openai.Client {
	if baseURL == "" {
		return openai.NewClient(apiKey)
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return openai.NewClientWithConfig(cfg)
}

func (c *OpenAI) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var content string

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model: c.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: userPrompt},
				},
				Temperature: c.temperature,
				MaxTokens:   c.maxTokens,
			},
		)
		if err != nil {
			return Classify(err)
		}

		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: completion returned no choices", ErrProviderUnavailable)
		}

		logger.Debug("Completion generated",
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)

		content = resp.Choices[0].Message.Content
		return nil
	})

	if err != nil {
		metrics.ProviderRequests.WithLabelValues("completion", "error").Inc()
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		return "", err
	}

	metrics.ProviderRequests.WithLabelValues("completion", "ok").Inc()
	return content, nil
}
