package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var ErrEmptyAnswer = errors.New("empty answer from model")

// Completer is the subset of the LLM client a chain needs beyond embedding.
type Completer interface {
	Embedder
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Answer is the output of one chain invocation. Context carries the chunks
// the answer was grounded on, for observability.
type Answer struct {
	Text    string
	Context []Chunk
}

// ChainConfig describes one retrieval-augmented chain.
type ChainConfig struct {
	Name         string
	Model        string
	K            int
	SearchMode   SearchMode
	SystemPrompt string
	UserPrompt   string
}

// Chain embeds the user input, retrieves the top-k chunks from its index,
// renders the two-part prompt and invokes the model. Stateless apart from
// the immutable index; safe for concurrent invocations.
type Chain struct {
	cfg    ChainConfig
	index  *Index
	llm    Completer
	logger *zerolog.Logger
}

func NewChain(cfg ChainConfig, index *Index, llm Completer, logger *zerolog.Logger) *Chain {
	if cfg.K <= 0 {
		cfg.K = 4
	}
	if cfg.SearchMode == "" {
		cfg.SearchMode = SearchSimilarity
	}

	return &Chain{cfg: cfg, index: index, llm: llm, logger: logger}
}

// Invoke runs the chain over inputs. inputs["input"] is the user utterance;
// any further entries (e.g. "dados") are substituted into the templates as
// {name} placeholders.
func (c *Chain) Invoke(ctx context.Context, inputs map[string]string) (*Answer, error) {
	utterance := inputs["input"]

	queryEmbedding, err := c.llm.GetEmbedding(ctx, utterance)
	if err != nil {
		return nil, fmt.Errorf("%w: embed input: %v", ErrEmbeddingUnavailable, err)
	}

	retrieved := c.index.Search(queryEmbedding, c.cfg.K, c.cfg.SearchMode)

	prompt := c.renderPrompt(inputs, retrieved)

	answer, err := c.llm.Complete(ctx, c.cfg.Model, prompt)
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", c.cfg.Name, err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("chain %s: %w", c.cfg.Name, ErrEmptyAnswer)
	}

	c.logger.Debug().
		Str("chain", c.cfg.Name).
		Int("retrieved", len(retrieved)).
		Msg("chain invocation finished")

	return &Answer{Text: answer, Context: retrieved}, nil
}

func (c *Chain) renderPrompt(inputs map[string]string, retrieved []Chunk) string {
	contextText := make([]string, len(retrieved))
	for i, chunk := range retrieved {
		contextText[i] = chunk.Text
	}

	pairs := []string{PlaceholderContext, strings.Join(contextText, "\n\n")}
	for name, value := range inputs {
		pairs = append(pairs, "{"+name+"}", value)
	}

	replacer := strings.NewReplacer(pairs...)

	return replacer.Replace(c.cfg.SystemPrompt) + "\n\n" + replacer.Replace(c.cfg.UserPrompt)
}
