package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func standardPricing() *DefaultPricing {
	return &DefaultPricing{
		BaseCost:      10,
		OCRPageCost:   5,
		ChunkingCost:  5,
		EmbeddingCost: 2,
	}
}

func TestEstimate(t *testing.T) {
	p := standardPricing()

	testCases := []struct {
		name            string
		needsOCR        bool
		estimatedPages  int
		estimatedChunks int
		want            int64
	}{
		{name: "text only", needsOCR: false, estimatedPages: 0, estimatedChunks: 20, want: 10 + 5 + 40},
		{name: "with ocr", needsOCR: true, estimatedPages: 8, estimatedChunks: 0, want: 10 + 40 + 5},
		{name: "ocr pages ignored without ocr", needsOCR: false, estimatedPages: 8, estimatedChunks: 10, want: 10 + 5 + 20},
		{name: "large document", needsOCR: true, estimatedPages: 100, estimatedChunks: 500, want: 10 + 500 + 5 + 1000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Estimate(tc.needsOCR, tc.estimatedPages, tc.estimatedChunks)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestActual(t *testing.T) {
	p := standardPricing()

	testCases := []struct {
		name        string
		ocrExecuted bool
		ocrPages    int
		chunks      int
		embeddings  int
		want        int64
	}{
		{name: "text pipeline", ocrExecuted: false, chunks: 12, embeddings: 12, want: 10 + 5 + 24},
		{name: "ocr pipeline", ocrExecuted: true, ocrPages: 4, chunks: 6, embeddings: 6, want: 10 + 20 + 5 + 12},
		{name: "no chunking fee when nothing chunked", ocrExecuted: false, chunks: 0, embeddings: 0, want: 10},
		{name: "partial re-embed", ocrExecuted: false, chunks: 10, embeddings: 3, want: 10 + 5 + 6},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Actual(tc.ocrExecuted, tc.ocrPages, tc.chunks, tc.embeddings)
			assert.Equal(t, tc.want, got)
		})
	}
}

// The same formula prices estimate and settlement, so a run whose
// guesses were exact settles at the estimated amount.
func TestEstimateMatchesActualForExactGuesses(t *testing.T) {
	p := standardPricing()

	estimate := p.Estimate(true, 4, 25)
	actual := p.Actual(true, 4, 25, 25)
	assert.Equal(t, estimate, actual)
}
