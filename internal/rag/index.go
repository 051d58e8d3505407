package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
)

// SearchMode selects the retrieval strategy.
type SearchMode string

const (
	// SearchSimilarity ranks purely by cosine similarity to the query.
	SearchSimilarity SearchMode = "similarity"
	// SearchMMR applies a diversity penalty so near-duplicate chunks do not
	// crowd out distinct context (maximal marginal relevance).
	SearchMMR SearchMode = "mmr"
)

// mmrLambda weights relevance against diversity in MMR re-ranking.
const mmrLambda = 0.5

var ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

// Embedder is the subset of the LLM client the index builder needs.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Index is an in-memory nearest-neighbour index over corpus chunks.
// It is immutable after BuildIndex returns and safe for concurrent search.
type Index struct {
	chunks []Chunk
}

// BuildIndex loads the corpus file, splits it and embeds every chunk. Any
// embedding failure aborts the build; a partial index is never returned.
func BuildIndex(ctx context.Context, embedder Embedder, corpusPath string, chunkSize, chunkOverlap int) (*Index, error) {
	raw, err := os.ReadFile(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", corpusPath, err)
	}

	chunks := NewSplitter(chunkSize, chunkOverlap).Split(string(raw))

	for i := range chunks {
		emb, err := embedder.GetEmbedding(ctx, chunks[i].Text)
		if err != nil {
			return nil, fmt.Errorf("%w: embed chunk at offset %d: %v", ErrEmbeddingUnavailable, chunks[i].SourceOffset, err)
		}

		chunks[i].Embedding = emb
	}

	return &Index{chunks: chunks}, nil
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Search returns the k chunks most relevant to queryEmbedding, best first.
func (idx *Index) Search(queryEmbedding []float32, k int, mode SearchMode) []Chunk {
	if k <= 0 || len(idx.chunks) == 0 {
		return nil
	}

	type scored struct {
		chunk Chunk
		score float32
	}

	candidates := make([]scored, 0, len(idx.chunks))
	for _, c := range idx.chunks {
		candidates = append(candidates, scored{chunk: c, score: CosineSimilarity(queryEmbedding, c.Embedding)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	if mode != SearchMMR {
		result := make([]Chunk, k)
		for i := 0; i < k; i++ {
			result[i] = candidates[i].chunk
		}

		return result
	}

	// MMR: greedily pick the candidate maximizing
	// lambda*sim(query) - (1-lambda)*max sim(already selected).
	selected := make([]Chunk, 0, k)
	remaining := candidates

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := float32(math.Inf(-1))

		for i, cand := range remaining {
			penalty := float32(0)
			for _, sel := range selected {
				if sim := CosineSimilarity(cand.chunk.Embedding, sel.Embedding); sim > penalty {
					penalty = sim
				}
			}

			score := mmrLambda*cand.score - (1-mmrLambda)*penalty
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx].chunk)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched or zero-length vectors score zero.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dotProduct, normA, normB float32
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
