package rag

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/appline-lab/voxsql/internal/config"
)

// Provider builds the two assistant chains lazily and shares them across
// requests. The corpora are static, so each index is embedded once per
// process lifetime instead of once per message. A failed build is retried
// on the next request.
type Provider struct {
	cfg    *config.Config
	llm    Completer
	logger *zerolog.Logger

	mu        sync.Mutex
	query     *Chain
	humanizer *Chain
}

func NewProvider(cfg *config.Config, llm Completer, logger *zerolog.Logger) *Provider {
	return &Provider{cfg: cfg, llm: llm, logger: logger}
}

// QueryChain returns the shared SQL-generation chain, building it on first
// use.
func (p *Provider) QueryChain(ctx context.Context) (*Chain, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.query != nil {
		return p.query, nil
	}

	index, err := BuildIndex(ctx, p.llm, p.cfg.SchemaCorpusPath, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("corpus", p.cfg.SchemaCorpusPath).Int("chunks", index.Len()).Msg("query chain index built")

	p.query = NewChain(ChainConfig{
		Name:         "query",
		Model:        p.cfg.QueryModel,
		K:            p.cfg.RetrievalK,
		SearchMode:   SearchMode(p.cfg.RetrievalSearchMode),
		SystemPrompt: queryChainSystemPrompt,
		UserPrompt:   queryChainUserPrompt,
	}, index, p.llm, p.logger)

	return p.query, nil
}

// HumanizerChain returns the shared humanization chain, building it on
// first use.
func (p *Provider) HumanizerChain(ctx context.Context) (*Chain, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.humanizer != nil {
		return p.humanizer, nil
	}

	index, err := BuildIndex(ctx, p.llm, p.cfg.BehaviorCorpusPath, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("corpus", p.cfg.BehaviorCorpusPath).Int("chunks", index.Len()).Msg("humanizer chain index built")

	p.humanizer = NewChain(ChainConfig{
		Name:         "humanizer",
		Model:        p.cfg.HumanizerModel,
		K:            p.cfg.RetrievalK,
		SearchMode:   SearchMode(p.cfg.RetrievalSearchMode),
		SystemPrompt: humanizerSystemPrompt,
		UserPrompt:   humanizerUserPrompt,
	}, index, p.llm, p.logger)

	return p.humanizer, nil
}
