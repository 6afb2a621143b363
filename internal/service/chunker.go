package service

import (
	"strings"

	"github.com/avelar/docindex/internal/domain"
)

// ChunkSpan is one fragment produced by the chunker.
type ChunkSpan struct {
	Text       string
	TokenCount int
}

// Chunker splits text into fragments bounded by a token budget.
// Tokens are whitespace-delimited words. With zero overlap the
// fragments partition the input: concatenating their tokens yields the
// original token sequence.
type Chunker struct {
	maxTokens int
	overlap   int
}

// NewChunker creates a chunker.
// Parameters:
//   - maxTokens: upper bound of tokens per fragment; values < 1 fall back to 400.
//   - overlap: tokens repeated from the end of one fragment at the start
//     of the next; clamped to maxTokens-1.
// Returns:
//   - *Chunker: configured chunker.
func NewChunker(maxTokens, overlap int) *Chunker {
	if maxTokens < 1 {
		maxTokens = 400
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxTokens {
		overlap = maxTokens - 1
	}
	return &Chunker{maxTokens: maxTokens, overlap: overlap}
}

// Split breaks text into bounded fragments. Empty and all-whitespace
// input yields no fragments.
func (c *Chunker) Split(text string) []ChunkSpan {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	step := c.maxTokens - c.overlap
	spans := make([]ChunkSpan, 0, (len(tokens)+step-1)/step)
	for start := 0; start < len(tokens); start += step {
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		spans = append(spans, ChunkSpan{
			Text:       strings.Join(window, " "),
			TokenCount: len(window),
		})
		if end == len(tokens) {
			break
		}
	}
	return spans
}

// totalTokens sums token counts over a chunk set.
func totalTokens(chunks []domain.Chunk) int {
	total := 0
	for _, c := range chunks {
		total += c.TokenCount
	}
	return total
}
