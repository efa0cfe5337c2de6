// Package embedding computes fixed-dimension vectors for processed items
// via an OpenAI-compatible embeddings API.
package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"catchup-feed/internal/resilience/circuitbreaker"
	"catchup-feed/internal/resilience/retry"
)

// Provider computes embeddings for text. Implementations must return
// vectors of a single, consistent dimension for the lifetime of the
// process.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIProvider calls the OpenAI embeddings endpoint.
type OpenAIProvider struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
}

// NewOpenAIProvider builds a Provider backed by the OpenAI API.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		client:  openai.NewClient(apiKey),
		model:   openai.EmbeddingModel(model),
		breaker: circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig()),
		retry:   retry.EmbeddingAPIConfig(),
	}
}

// Embed returns one vector per input text, in the same order.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openai.EmbeddingResponse
	err := retry.WithBackoff(ctx, p.retry, func() error {
		result, cbErr := p.breaker.Execute(func() (interface{}, error) {
			return p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: texts,
				Model: p.model,
			})
		})
		if cbErr != nil {
			return cbErr
		}
		resp = result.(openai.EmbeddingResponse)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
