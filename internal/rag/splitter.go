// Package rag implements the retrieval pipeline behind both assistant
// chains: corpus chunking, an in-memory vector index, and prompt-template
// chains that ground LLM answers in retrieved context.
package rag

// Chunk is a bounded slice of the source corpus, the unit of retrieval.
type Chunk struct {
	Text         string
	Embedding    []float32
	SourceOffset int
}

// Splitter cuts text into character windows of at most ChunkSize bytes.
// ChunkOverlap trailing bytes of each chunk are re-included at the start of
// the next one, so answer-relevant text cut at a boundary stays retrievable
// from at least one chunk.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Split returns chunks covering text with no gaps. A text of length L with
// zero overlap yields exactly ceil(L/ChunkSize) chunks.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	step := s.ChunkSize - s.ChunkOverlap

	var chunks []Chunk

	for offset := 0; ; offset += step {
		end := offset + s.ChunkSize
		if end >= len(text) {
			chunks = append(chunks, Chunk{Text: text[offset:], SourceOffset: offset})

			return chunks
		}

		chunks = append(chunks, Chunk{Text: text[offset:end], SourceOffset: offset})
	}
}
