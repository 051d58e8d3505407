package pipeline

import (
	"context"

	"github.com/appline-lab/voxsql/internal/rag"
)

type ragChains struct {
	provider *rag.Provider
}

// NewRAGChains adapts the shared chain provider to the driver interface.
func NewRAGChains(provider *rag.Provider) ChainProvider {
	return &ragChains{provider: provider}
}

func (c *ragChains) QueryChain(ctx context.Context) (Invoker, error) {
	return c.provider.QueryChain(ctx)
}

func (c *ragChains) HumanizerChain(ctx context.Context) (Invoker, error) {
	return c.provider.HumanizerChain(ctx)
}
