package billing

import "github.com/avelar/docindex/internal/config"

// Pricing converts pipeline work into credit amounts. The same
// strategy prices both the upfront estimate and the final settlement
// so the two can never drift apart.
type Pricing interface {
	// Estimate prices a job before any work has run.
	Estimate(needsOCR bool, estimatedPages, estimatedChunks int) int64
	// Actual prices the work that really happened.
	Actual(ocrExecuted bool, ocrPages, totalChunks, totalEmbeddings int) int64
}

// DefaultPricing is the standard per-unit cost model: a flat base fee,
// a per-page OCR fee, a flat chunking fee, and a per-vector embedding fee.
type DefaultPricing struct {
	BaseCost      int64
	OCRPageCost   int64
	ChunkingCost  int64
	EmbeddingCost int64
}

// NewDefaultPricing builds the standard cost model from configuration.
// Parameters:
//   - cfg: billing configuration with per-unit costs.
// Returns:
//   - *DefaultPricing: configured pricing strategy.
func NewDefaultPricing(cfg *config.BillingConfig) *DefaultPricing {
	return &DefaultPricing{
		BaseCost:      cfg.BaseCost,
		OCRPageCost:   cfg.OCRPageCost,
		ChunkingCost:  cfg.ChunkingCost,
		EmbeddingCost: cfg.EmbeddingCost,
	}
}

// Estimate prices a job before execution from what is known upfront.
func (p *DefaultPricing) Estimate(needsOCR bool, estimatedPages, estimatedChunks int) int64 {
	total := p.BaseCost
	if needsOCR {
		total += p.OCRPageCost * int64(estimatedPages)
	}
	total += p.ChunkingCost
	total += p.EmbeddingCost * int64(estimatedChunks)
	return total
}

// Actual prices the work that was performed. OCR is charged only when
// it ran, and the chunking fee only when chunks were produced.
func (p *DefaultPricing) Actual(ocrExecuted bool, ocrPages, totalChunks, totalEmbeddings int) int64 {
	total := p.BaseCost
	if ocrExecuted {
		total += p.OCRPageCost * int64(ocrPages)
	}
	if totalChunks > 0 {
		total += p.ChunkingCost
	}
	total += p.EmbeddingCost * int64(totalEmbeddings)
	return total
}
