// Package llm provides completion and embedding access to an
// OpenAI-compatible backend (Ollama in the default deployment).
package llm

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/appline-lab/voxsql/internal/config"
)

type Client interface {
	// Complete sends a rendered prompt to the given model and returns the
	// raw completion text.
	Complete(ctx context.Context, model, prompt string) (string, error)

	// GetEmbedding generates an embedding vector for the given text.
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

const mockAPIKey = "mock"

func New(cfg *config.Config, logger *zerolog.Logger) Client {
	if cfg.LLMAPIKey == "" || cfg.LLMAPIKey == mockAPIKey {
		return &mockClient{}
	}

	return NewOpenAI(cfg, logger)
}

const mockEmbeddingDimensions = 1024

type mockClient struct{}

func (c *mockClient) Complete(_ context.Context, model, prompt string) (string, error) {
	return fmt.Sprintf("mock completion from %s (%d prompt bytes)", model, len(prompt)), nil
}

// GetEmbedding generates a deterministic embedding from the text hash so
// tests get consistent vectors for the same input.
func (c *mockClient) GetEmbedding(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, mockEmbeddingDimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33)-0x40000000) / float32(0x40000000)
	}

	return vec, nil
}
