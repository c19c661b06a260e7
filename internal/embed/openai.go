package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/llm"
	"github.com/factorymind/backend/internal/metrics"
	"github.com/factorymind/backend/pkg/circuitbreaker"
	"github.com/factorymind/backend/pkg/logger"
)

type OpenAI struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
	timeout   time.Duration
	cb        *circuitbreaker.CircuitBreaker
}

func NewOpenAI(apiKey, baseURL, model string, dimension, batchSize, timeoutSec int) *OpenAI {
	if batchSize <= 0 {
		batchSize = 100
	}
	if timeoutSec <= 0 {
		timeoutSec = 30
	}

	cb := circuitbreaker.New("embedding", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	logger.Info("Embedding provider initialized",
		zap.String("model", model),
		zap.Int("dimension", dimension),
	)

	return &OpenAI{
		client:    newAPIClient(apiKey, baseURL),
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
		timeout:   time.Duration(timeoutSec) * time.Second,
		cb:        cb,
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

func (p *OpenAI) Dimension() int {
	return p.dimension
}

func (p *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", llm.ErrProviderUnavailable, len(vectors))
	}
	return vectors[0], nil
}

func (p *OpenAI) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		batchCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.cb.Execute(batchCtx, func() error {
			resp, err := p.client.CreateEmbeddings(
				batchCtx,
				openai.EmbeddingRequest{
					Input: batch,
					Model: openai.EmbeddingModel(p.model),
				},
			)
			if err != nil {
				return llm.Classify(err)
			}

			if len(resp.Data) != len(batch) {
				return fmt.Errorf("%w: embedding count mismatch: got %d, expected %d",
					llm.ErrProviderUnavailable, len(resp.Data), len(batch))
			}

			for _, data := range resp.Data {
				if len(data.Embedding) != p.dimension {
					return fmt.Errorf("%w: embedding dimension mismatch: got %d, expected %d",
						llm.ErrProviderUnavailable, len(data.Embedding), p.dimension)
				}
				vec := make([]float32, len(data.Embedding))
				copy(vec, data.Embedding)
				vectors = append(vectors, vec)
			}
			return nil
		})
		cancel()

		if err != nil {
			metrics.ProviderRequests.WithLabelValues("embedding", "error").Inc()
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("%w: %w", llm.ErrProviderUnavailable, err)
			}
			return nil, err
		}
	}

	metrics.ProviderRequests.WithLabelValues("embedding", "ok").Inc()
	logger.Debug("Batch embeddings generated", zap.Int("count", len(vectors)))

	return vectors, nil
}
