package rag

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// scriptedLLM returns canned completions and axis-aligned embeddings keyed
// by known inputs.
type scriptedLLM struct {
	mu          sync.Mutex
	completions []string
	prompts     []string
	embeddings  map[string][]float32
}

func (s *scriptedLLM) GetEmbedding(_ context.Context, text string) ([]float32, error) {
	if emb, ok := s.embeddings[text]; ok {
		return emb, nil
	}

	return []float32{1, 0, 0}, nil
}

func (s *scriptedLLM) Complete(_ context.Context, _ string, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)

	if len(s.completions) == 0 {
		return "resposta", nil
	}

	next := s.completions[0]
	s.completions = s.completions[1:]

	return next, nil
}

func testChain(t *testing.T, llm Completer, cfg ChainConfig) *Chain {
	t.Helper()

	logger := zerolog.Nop()

	index := &Index{chunks: []Chunk{
		{Text: "coluna QTDE_PRODUZIDA: produção do turno", Embedding: []float32{1, 0, 0}},
		{Text: "coluna DATA_APONTAMENTO: data do registro", Embedding: []float32{0, 1, 0}},
	}}

	return NewChain(cfg, index, llm, &logger)
}

func TestChainInvokeRendersPlaceholders(t *testing.T) {
	llm := &scriptedLLM{}
	chain := testChain(t, llm, ChainConfig{
		Name:         "humanizer",
		Model:        "test-model",
		K:            1,
		SystemPrompt: "contexto: {context}\npergunta: {input}\ndados: {dados}",
		UserPrompt:   "{input} / {dados}",
	})

	answer, err := chain.Invoke(context.Background(), map[string]string{
		"input": "produção de ontem",
		"dados": "linha 1: 500 unidades",
	})
	require.NoError(t, err)
	require.Equal(t, "resposta", answer.Text)
	require.Len(t, answer.Context, 1)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	require.Contains(t, prompt, "pergunta: produção de ontem")
	require.Contains(t, prompt, "dados: linha 1: 500 unidades")
	require.Contains(t, prompt, "coluna QTDE_PRODUZIDA")
	require.NotContains(t, prompt, "{context}")
	require.NotContains(t, prompt, "{input}")
	require.NotContains(t, prompt, "{dados}")
}

func TestChainInvokeEmptyAnswer(t *testing.T) {
	llm := &scriptedLLM{completions: []string{"   \n"}}
	chain := testChain(t, llm, ChainConfig{Name: "query", Model: "m", K: 1, SystemPrompt: "{context} {input}", UserPrompt: "{input}"})

	_, err := chain.Invoke(context.Background(), map[string]string{"input": "oi"})
	require.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestChainInvokeTrimsAnswer(t *testing.T) {
	llm := &scriptedLLM{completions: []string{"  SELECT 1 FROM DUAL \n"}}
	chain := testChain(t, llm, ChainConfig{Name: "query", Model: "m", K: 1, SystemPrompt: "{context} {input}", UserPrompt: "{input}"})

	answer, err := chain.Invoke(context.Background(), map[string]string{"input": "oi"})
	require.NoError(t, err)
	require.Equal(t, "SELECT 1 FROM DUAL", answer.Text)
}

func TestChainConcurrentInvocations(t *testing.T) {
	llm := &scriptedLLM{}
	chain := testChain(t, llm, ChainConfig{Name: "query", Model: "m", K: 2, SystemPrompt: "{context}", UserPrompt: "{input}"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := chain.Invoke(context.Background(), map[string]string{"input": strings.Repeat("x", 10)})
			if err != nil {
				t.Error(err)
			}
		}()
	}

	wg.Wait()
}
